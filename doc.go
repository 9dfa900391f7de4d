// Package evolve tracks how named schemas change over time and moves data
// between their versions.
//
// An Engine ties together the pieces found in the sub-packages:
//   - registry: numbered versions of each schema, content hashes, metadata
//   - compat: backward/forward compatibility between two versions
//   - migration: single-hop transforms, chains, execution and rollback
//   - store, codec, notify: optional persistence and change notifications
//
// Basic example:
//
//	engine, err := evolve.NewEngine("billing")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close(ctx)
//
//	engine.CreateSchema(ctx, "users", schema.NewObject().
//	    Required("id", schema.String()).
//	    Required("name", schema.String()))
//
//	engine.AddVersion(ctx, "users", schema.NewObject().
//	    Required("id", schema.String()).
//	    Required("firstName", schema.String()).
//	    Required("lastName", schema.String()))
//
//	engine.RegisterMigration("users", 2, splitName,
//	    migration.WithBackward(joinName))
//
//	res := engine.Migrate(ctx, "users", data, 1, 2)
//	if !res.Success {
//	    log.Println(res.Err)
//	}
//
// Engine Options:
//   - WithStore: persist every version record. Default is none.
//   - WithCodec: encoding for persisted records. Default is JSON.
//   - WithNotifier: publish every registry change. Default is none.
//   - WithTracing: enable/disable OpenTelemetry tracing. Default is true.
//   - WithMetrics: enable/disable OpenTelemetry metrics. Default is true.
//   - WithRecovery: enable/disable panic recovery in transforms. Default is true.
//   - WithCacheSize: number of resolved chains to cache. Default is 256.
//   - WithLogger: set logger for the engine.
//
// Engine Registry:
// Engines are registered globally by name and can be looked up with
// GetEngine. Closing an engine unregisters it.
//
// Errors:
// Registration calls return errors wrapping the sentinels of the
// sub-packages. Migrations never return errors: check Result.Success and
// inspect Result.Err with errors.Is.
package evolve
