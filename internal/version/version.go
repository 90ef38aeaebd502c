package version

// Version is set at build time with -ldflags "-X barobak/internal/version.Version=v1.2.3".
var Version = "dev"

const ProductName = "barobak"

func UserAgent() string {
	return ProductName + "/" + Version
}
