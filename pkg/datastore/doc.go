// Package datastore is a small entity store used as the host for chaos
// injection. Every tracked call (Get, Put, Delete) goes through the pre-call
// hooks registered for Service before it reaches the backend, so a chaos
// Dispatcher installed with hook.Install can fail or delay it.
//
//	hooks := hook.NewRegistry()
//	cfg, _ := datastore.DefaultConfig()
//	d := chaos.NewDispatcher(cfg, chaos.WithResolver(datastore.DefaultRegistry()))
//	inst, err := hook.Install(hooks, datastore.Service, d)
//	if err != nil {
//	    return err
//	}
//	defer inst.Uninstall()
//
//	store := datastore.Guard(datastore.NewMemoryStore(), hooks)
//
// Three backends are provided: MemoryStore, SQLiteStore and RedisStore.
package datastore
