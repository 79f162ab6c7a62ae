// Package errors provides structured error types for better observability
// and programmatic error handling across the application.
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeProbeTimeout,
//	    "probe exceeded deadline",
//	    ctx.Err(),
//	    map[string]interface{}{
//	        "probe": "fio_randread",
//	        "stage": "disk",
//	    },
//	)
package errors
