// Package chaos decides, for each intercepted operation, whether to inject a
// fault and carries it out.
//
// A host calls Dispatch immediately before a real operation runs. The
// Dispatcher consults the current policy.ChaosConfig and evaluates the effect
// categories in a fixed order:
//
//   - errors: roll the operation's error rate once. On a hit, sample an error
//     label, resolve it to an error value through the Resolver and return it.
//     The host must abort the real operation and hand the error to its caller.
//   - latencies: roll the operation's latency rate once. On a hit, sample a
//     latency spec, compute a duration and block the caller for it.
//
// An injected error ends dispatch, so a caller never pays for a delay whose
// result it would not see.
//
// # Configuration
//
//	cfg, err := policy.Load("chaos.yaml", policy.WithLabelCheck(registry.Check))
//	if err != nil {
//	    return err
//	}
//	d := chaos.NewDispatcher(cfg,
//	    chaos.WithResolver(registry),
//	    chaos.WithLogger(logger),
//	)
//
// SetConfig swaps the whole config atomically, which is how policy.Watcher
// applies a reloaded file.
//
// # Decisions
//
// Decide runs the same evaluation without blocking and returns a Decision
// value. Dispatch is Decide followed by applying the decision; tests and the
// simulate command use Decide directly.
//
// # Errors
//
// Every error Dispatch returns for an injected fault is a *Fault. errors.Is and
// errors.As reach the error built by the resolver, or one of:
//
//   - ErrInjectedFault: the error rate fired but the policy lists no errors.
//   - *UnresolvableEffectError: the sampled label has no factory.
//   - ErrSamplerPrecondition: the policy's weights are all zero.
package chaos
