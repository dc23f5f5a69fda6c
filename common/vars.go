package common

// Version is set at build time with -ldflags "-X github.com/ruteri/slb-bond-backend/common.Version=..."
var Version = "dev"

// PackageName is used as the service tag and the metrics namespace.
const PackageName = "slb-bond-backend"
