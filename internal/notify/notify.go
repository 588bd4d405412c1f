package notify

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"studio/internal/domain"
)

// Code identifies a user-facing message.
type Code string

const (
	CodeBadRequest        Code = "bad_request"
	CodeUnauthorized      Code = "unauthorized"
	CodeNotFound          Code = "not_found"
	CodeNotRetryable      Code = "not_retryable"
	CodeNotSubmitted      Code = "not_submitted"
	CodeConflict          Code = "conflict"
	CodeSubmissionFailed  Code = "submission_failed"
	CodeStatusCheckFailed Code = "status_check_failed"
	CodeRateLimited       Code = "rate_limited"
	CodeInternal          Code = "internal"
	CodeJobSubmitted      Code = "job.submitted"
	CodeJobCompleted      Code = "job.completed"
	CodeJobFailed         Code = "job.failed"
	CodeJobRetried        Code = "job.retried"
)

var supported = []language.Tag{language.English, language.Indonesian}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[Code]string{
	language.English: {
		CodeBadRequest:        "The request is invalid: %s.",
		CodeUnauthorized:      "Please sign in to continue.",
		CodeNotFound:          "We could not find that job.",
		CodeNotRetryable:      "Only failed jobs can be retried.",
		CodeNotSubmitted:      "This job has not reached the provider yet.",
		CodeConflict:          "The job changed while we were updating it. Refresh to see the latest state.",
		CodeSubmissionFailed:  "The generation service rejected the request. Please try again.",
		CodeStatusCheckFailed: "We could not check the job status. Refresh to try again.",
		CodeRateLimited:       "Too many requests. Please slow down.",
		CodeInternal:          "Something went wrong on our side.",
		CodeJobSubmitted:      "Your %s request is in the queue.",
		CodeJobCompleted:      "Your %s is ready.",
		CodeJobFailed:         "Your %s could not be generated: %s",
		CodeJobRetried:        "Your %s request was sent again.",
	},
	language.Indonesian: {
		CodeBadRequest:        "Permintaan tidak valid: %s.",
		CodeUnauthorized:      "Silakan masuk untuk melanjutkan.",
		CodeNotFound:          "Pekerjaan tidak ditemukan.",
		CodeNotRetryable:      "Hanya pekerjaan yang gagal yang dapat diulang.",
		CodeNotSubmitted:      "Pekerjaan ini belum dikirim ke penyedia.",
		CodeConflict:          "Pekerjaan berubah saat sedang diperbarui. Muat ulang untuk melihat status terbaru.",
		CodeSubmissionFailed:  "Layanan generasi menolak permintaan. Silakan coba lagi.",
		CodeStatusCheckFailed: "Status pekerjaan tidak dapat diperiksa. Muat ulang untuk mencoba lagi.",
		CodeRateLimited:       "Terlalu banyak permintaan. Mohon tunggu sebentar.",
		CodeInternal:          "Terjadi kesalahan pada sistem kami.",
		CodeJobSubmitted:      "Permintaan %s Anda sedang dalam antrean.",
		CodeJobCompleted:      "%s Anda sudah siap.",
		CodeJobFailed:         "%s Anda gagal dibuat: %s",
		CodeJobRetried:        "Permintaan %s Anda telah dikirim ulang.",
	},
}

var kindLabels = map[language.Tag]map[domain.JobKind]string{
	language.English: {
		domain.JobKindImage:       "image",
		domain.JobKindVideo:       "video",
		domain.JobKindProductShot: "product shot",
	},
	language.Indonesian: {
		domain.JobKindImage:       "gambar",
		domain.JobKindVideo:       "video",
		domain.JobKindProductShot: "foto produk",
	},
}

// Tag resolves a locale string such as "id", "id-ID" or an Accept-Language
// value to a supported language. Anything unparseable is English.
func Tag(locale string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(strings.TrimSpace(locale))
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Preferred matches an Accept-Language style value against the supported
// languages and returns the locale code. ok is false when value holds no
// parseable tag, so callers can fall through to other hints.
func Preferred(value string) (string, bool) {
	if strings.TrimSpace(value) == "" {
		return "", false
	}
	if _, _, err := language.ParseAcceptLanguage(value); err != nil {
		return "", false
	}
	return Tag(value).String(), true
}

// Locale is Preferred with English as the fallback.
func Locale(value string) string {
	if locale, ok := Preferred(value); ok {
		return locale
	}
	return language.English.String()
}

// Message renders code for locale. Unknown codes fall back to the internal
// error text.
func Message(locale string, code Code, args ...any) string {
	tag := Tag(locale)
	format, ok := catalog[tag][code]
	if !ok {
		format = catalog[tag][CodeInternal]
		args = nil
	}
	if len(args) == 0 {
		return strings.ReplaceAll(format, ": %s", "")
	}
	return fmt.Sprintf(format, args...)
}

// KindLabel names a job kind in the given locale.
func KindLabel(locale string, kind domain.JobKind) string {
	tag := Tag(locale)
	if label, ok := kindLabels[tag][kind]; ok {
		return label
	}
	return strings.ReplaceAll(string(kind), "_", " ")
}

// JobMessage renders the notification for a job in its current state.
func JobMessage(locale string, job *domain.Job) string {
	label := KindLabel(locale, job.Kind)
	switch job.Status {
	case domain.JobStatusCompleted:
		return capitalize(locale, Message(locale, CodeJobCompleted, label))
	case domain.JobStatusFailed:
		return capitalize(locale, Message(locale, CodeJobFailed, label, job.Error()))
	default:
		return Message(locale, CodeJobSubmitted, label)
	}
}

func capitalize(locale, s string) string {
	if s == "" {
		return s
	}
	first := strings.SplitN(s, " ", 2)
	first[0] = cases.Title(Tag(locale)).String(first[0])
	return strings.Join(first, " ")
}
