// Package core is an incremental UI reconciler.
//
// Components describe the desired UI as a tree of Elements. A Root keeps
// the tree committed to a host and, when updates arrive, builds a new
// work-in-progress tree next to it, diffs the two and applies the minimal
// set of host mutations in one uninterruptible commit.
//
// # Roots and updates
//
// A Reconciler is created once per scheduler and hands out roots:
//
//	sched := scheduler.New(scheduler.Options{})
//	r := core.NewReconciler(core.Options{Scheduler: sched})
//	root := r.CreateRoot(host, container, core.RootOptions{})
//	root.Render(core.F(App, nil))
//	sched.FlushAll()
//
// Every update is assigned a lane (see package lanes). Updates issued inside
// FlushSync render before FlushSync returns; default updates and transitions
// run as scheduler tasks. Transition renders yield between units of work and
// are restarted when more urgent work arrives.
//
// # Components and hooks
//
// A ComponentFunc receives a *Ctx giving access to hooks:
//
//	func Counter(c *core.Ctx, props core.Props) core.Node {
//	    count, set := core.UseState(c, 0)
//	    core.UseEffect(c, func() func() {
//	        log.Println("count is", count)
//	        return nil
//	    }, []any{count})
//	    return core.H("button", core.Props{"onClick": func() { set.Update(func(n int) int { return n + 1 }) }}, count)
//	}
//
// Hooks must be called in the same order on every render of a component.
//
// # Suspense and error boundaries
//
// A component that cannot render yet returns Suspend(thenable). The nearest
// Suspense boundary commits its fallback and retries once the thenable
// settles. A component that fails returns Fail(err) or panics; the nearest
// ErrorBoundary replaces its subtree with the boundary's fallback.
//
// All reconciler state lives on the scheduler goroutine. Other goroutines
// hand work to it through Scheduler.Post; Promise does this for its
// listeners automatically.
package core
