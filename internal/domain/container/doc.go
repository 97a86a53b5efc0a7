// Package container holds the declarative container catalog.
//
// A catalog describes one site at one version. Each page of the catalog
// lists the URL patterns it applies to, the container definitions to match
// there and the binding rules to install.
//
// Components:
//   - Definition, Selector: what a container looks like
//   - Validate: startup checks (unique ids, compilable selectors, scores)
//   - Registry: immutable catalog set swapped atomically, URL resolution
//   - LoadDir: reads YAML, TOML and JSON catalog files from disk
//
// Example Usage:
//
//	reg := container.NewRegistry(logger)
//	if err := container.LoadInto(ctx, reg, "./catalogs"); err != nil {
//		log.Fatal(err)
//	}
//	res, err := reg.Resolve("https://m.example.com/feed")
package container
