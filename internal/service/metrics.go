package service

import (
	"errors"

	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinychan_posts_created_total",
			Help: "Accepted posts by kind",
		},
		[]string{"kind"},
	)

	postRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinychan_post_rejections_total",
			Help: "Rejected post submissions by reason",
		},
		[]string{"reason"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinychan_uploads_total",
			Help: "Accepted uploads by extension",
		},
		[]string{"ext"},
	)

	regenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tinychan_regeneration_duration_seconds",
			Help:    "Duration of a static regeneration pass per board",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"board"},
	)

	regenerationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tinychan_regeneration_failures_total",
			Help: "Failed static regeneration passes",
		},
	)

	orphanedFilesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tinychan_orphaned_media_deleted_total",
			Help: "Unreferenced media files removed by the garbage collector",
		},
	)

	regenerationCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tinychan_regeneration_coalesced_total",
			Help: "Regeneration requests merged into an already pending pass",
		},
	)
)

var rejectionReasons = []struct {
	err    error
	reason string
}{
	{internal_errors.ErrEmptyMessage, "empty_message"},
	{internal_errors.ErrMessageTooLong, "message_too_long"},
	{internal_errors.ErrMissingSubject, "missing_subject"},
	{internal_errors.ErrSubjectTooLong, "subject_too_long"},
	{internal_errors.ErrUnknownBoard, "unknown_board"},
	{internal_errors.ErrParentNotFound, "parent_not_found"},
	{internal_errors.ErrUploadTransport, "upload_transport"},
	{internal_errors.ErrFileTooLarge, "file_too_large"},
	{internal_errors.ErrUnsupportedType, "unsupported_type"},
	{internal_errors.ErrContentMismatch, "content_mismatch"},
	{internal_errors.ErrCSRFMismatch, "csrf"},
	{internal_errors.ErrRateLimited, "rate_limited"},
}

func rejectionReason(err error) string {
	for _, r := range rejectionReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	if internal_errors.Is[*internal_errors.StorageError](err) {
		return "storage"
	}
	return "other"
}

func postKind(isThread bool) string {
	if isThread {
		return "thread"
	}
	return "reply"
}
