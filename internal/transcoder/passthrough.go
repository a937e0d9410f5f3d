package transcoder

import "context"

// PassthroughTier returns the original bytes. It never fails.
type PassthroughTier struct{}

// Name implements Tier.
func (PassthroughTier) Name() string { return "passthrough" }

// Attempt implements Tier.
func (PassthroughTier) Attempt(_ context.Context, job *Job) (*Result, error) {
	return passthrough(job), nil
}

func passthrough(job *Job) *Result {
	r := newResult("passthrough", job, job.Blob.Data, job.Blob.ContentType())
	r.Blob.Name = job.Blob.Name
	return r
}
