// Package version reports the build of a gostream binary.
//
// Values are stamped at link time and fall back to the VCS settings the
// Go toolchain embeds:
//
//	go build -ldflags "-X github.com/kbukum/gostream/version.Version=1.2.0"
package version
