package version

// Version is overridden at build time with
// -ldflags "-X commvault-ops/src/version.Version=...".
var Version = "dev"
