// Package memory sizes the Go heap for containers and gates new uploads on
// heap usage.
//
// Every upload holds its payload in memory, and a transcode may hold two
// copies plus an ffmpeg child process. [ConfigureFromEnv] sets GOMEMLIMIT from
// the container limit so the runtime collects before the kernel kills it.
// [Monitor] samples the heap and refuses new uploads through [Monitor.Admit]
// once usage crosses the critical mark, resuming below the high mark.
//
// # Environment Variables
//
//   - GOMEMLIMIT: Standard Go variable. Takes precedence when set.
//   - MEMORY_LIMIT: Container memory limit in bytes, usually from the
//     Kubernetes Downward API.
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap, between 0 and
//     1. Default 0.75, leaving room for ffmpeg and libvips.
//
// # Kubernetes Configuration
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
package memory
