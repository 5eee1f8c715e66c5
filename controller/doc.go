// Package controller defines the contract between the worker and the code
// that performs a sync, and the registry that maps a type's controller
// reference to that code.
//
// A controller is any value registered under a reference string. The
// registry inspects it once, at registration, for optional interfaces and
// caches what it finds in a [Unit]:
//
//   - [Bypass]: the controller computes the target itself and returns a
//     [Result]. The worker only applies capability flags and persists.
//   - [TargetResolver] / [MultiTargetResolver] plus [TargetUpdater]: the
//     worker orchestrates resolution, loading, mutation, diffing and saving,
//     calling the optional hooks ([AfterStart], [BeforeRelay], [AfterRelay],
//     [BeforeSync], [AfterSync], [Finished]) along the way.
//
// A value that implements neither Execute nor a resolver is rejected with
// docsync.ErrConfiguration.
//
//	reg := controller.NewRegistry()
//	err := reg.Register("order-to-invoice", &OrderToInvoice{})
package controller
