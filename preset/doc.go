// Package preset loads chat presets from YAML: a system prompt, a default model,
// sampling settings and tool descriptors under one id. Presets come from a directory,
// an fs.FS, an HTTP server or a git repository (see preset/gitfetch), and Registry
// caches them with a TTL.
package preset
