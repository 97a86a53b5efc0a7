/*
Package operation defines the operation contract and runs operations.

# Overview

An Operation is a named browser action (click, scroll, extract, ...). The
Registry maps ids to implementations and is shared read-only by every
session. An Executor belongs to one session: it builds a fresh Context per
call, enforces a timeout and normalizes the outcome into a Result.

# Results

Execute never returns an error. Unknown ids produce
Result{Success: false, Error: "operation_not_found"}; failures, panics and
timeouts produce a failed Result with a readable message. A timed out call
is abandoned, so its browser side effect may still happen.

# Usage

	reg := operation.NewRegistry()
	reg.MustRegister(operations.Builtins()...)

	exec := operation.NewExecutor(reg, operation.ExecutorOptions{Page: page})
	res := exec.Execute(ctx, operation.Request{
		ContainerID: "feed",
		OperationID: "scroll",
		Config:      map[string]any{"dy": 800},
	})
*/
package operation
