// Package storage provides file management for fetched items and processed
// artifacts.
//
// The storage package handles:
//   - Creating and managing job directories
//   - Saving items and artifacts with atomic write operations
//   - Enumerating stored items in natural numeric order
//
// Fetched items live in one directory as <key>.txt, keyed by the slug of the
// URL they were fetched from. A second write with the same key replaces the
// first. Processed artifacts are written under caller-chosen names.
//
// Usage:
//
//	manager, err := storage.NewManager("chapter_archive/raw")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	path, err := manager.SaveItem("chapter-1", text)
//	for _, key := range manager.ListItems() {
//	    text, err := manager.ReadItem(key)
//	    ...
//	}
package storage
