/*
Package httpserver runs the bond API.

Server wraps the handlers given to New with request logging and panic
recovery, and adds the operational endpoints:

  - GET /livez: always 200 while the process is up
  - GET /readyz: 200 when ready, 503 while draining
  - GET /drain: marks the server not ready and answers after the drain duration
  - GET /undrain: marks the server ready again
  - /debug/pprof: when EnablePprof is set

Prometheus metrics are served by a separate listener on MetricsAddr.
*/
package httpserver
