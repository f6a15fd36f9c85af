// Package checkpoint persists the per-channel resume points of a sync.
//
// All channels share one JSON file keyed by the string-encoded channel id:
//
//	{"1234": {"fanclub": "...", "username": "...", "user_id": 99, "price": 300, "update": "2024-05-01 12:30"}}
//
// The file is written atomically (temporary file, fsync, rename) and only
// after a channel has fully synced. The default location follows the
// platform data directory:
//   - Linux: $XDG_DATA_HOME/fcsync or ~/.local/share/fcsync
//   - macOS: ~/Library/Application Support/fcsync
//   - Windows: %APPDATA%/fcsync
package checkpoint
