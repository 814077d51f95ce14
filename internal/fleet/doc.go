// Package fleet drives the per-instance lifecycle of a deployment.
//
// Each instance goes through four phases, strictly one instance at a time in
// declaration order:
//   - Purge: delete any existing instance of the same name. A missing instance
//     is not an error.
//   - Synthesize: render the cloud-init document and write it to a private
//     temporary directory.
//   - Launch: hand the document to multipass, bounded by the launch timeout.
//   - Cleanup: remove the temporary directory, whatever happened before.
//
// Error Handling:
//
// A failed instance does not stop the run unless FailFast is set; there is no
// rollback of instances that were already launched. Failures are classified
// with ErrPurgeFailed and ErrLaunchFailed. Cleanup failures are logged only.
//
// Context Support:
//
// Cancelling the context aborts the launch in progress, which is reported as a
// launch failure. Cleanup still runs and no further instance is started.
package fleet
