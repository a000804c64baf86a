package types

// Version is the canonical project version.
// Both processes (robot daemon, remote CLI) share this version; peers
// with mismatched versions interoperate as long as unknown wire fields
// remain ignorable, so a mismatch is logged but never fatal.
const Version = "0.3.1"
