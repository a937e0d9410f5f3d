package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(serverHosts []string) {
	// --- Blossom server attempts (per configured server × result) ---
	results := []string{"ok", "status", "transport", "malformed", "hash-mismatch"}
	for _, host := range serverHosts {
		for _, r := range results {
			ServerAttemptsTotal.WithLabelValues(host, r)
		}
		ServerAttemptDuration.WithLabelValues(host)
		IntegrityRejectionsTotal.WithLabelValues(host)
	}

	// --- Upload routes ---
	for _, via := range []string{"blossom", "fallback"} {
		UploadsTotal.WithLabelValues(via, "success")
		UploadsTotal.WithLabelValues(via, "error")
		UploadBytesTotal.WithLabelValues(via)
		HistoryUploadsTotal.WithLabelValues(via)
	}

	for _, category := range []string{"oversized", "unsupported", "load-timeout",
		"upload-failed", "malformed-response", "missing-signer", "generic"} {
		UploadFailuresTotal.WithLabelValues(category)
	}

	for _, reason := range []string{"memory", "too-large", "unauthorized"} {
		UploadsRejectedTotal.WithLabelValues(reason)
	}

	// --- Transcoder tiers ---
	for _, tier := range []string{"software", "hardware", "capture", "passthrough"} {
		TranscoderJobsTotal.WithLabelValues(tier, "success")
		TranscoderJobsTotal.WithLabelValues(tier, "error")
		TranscoderJobDuration.WithLabelValues(tier)
	}

	for _, engine := range []string{"vips", "imaging"} {
		ImageResizesTotal.WithLabelValues(engine, "success")
		ImageResizesTotal.WithLabelValues(engine, "error")
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "record_upload", "list_uploads",
		"find_by_digest", "delete_by_digest", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
