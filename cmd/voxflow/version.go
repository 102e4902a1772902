package main

// Set at build time via -ldflags "-X main.version=...".
var version = "dev"
