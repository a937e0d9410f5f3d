/*
Package workers sizes CPU-bound work in containerized environments.

runtime.NumCPU reports the host's CPUs, while GOMAXPROCS follows the container
CPU limit on Go 1.19+. The encoder thread count passed to ffmpeg is derived
from GOMAXPROCS so that a pod limited to 2 CPUs does not start 64 threads.

	threads := workers.ForCPU(16) // at most 16

Operators can pin the value with FFMPEG_THREADS:

	env:
	- name: FFMPEG_THREADS
	  value: "4"
*/
package workers
