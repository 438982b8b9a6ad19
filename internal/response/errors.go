package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden             ErrCode = "FORBIDDEN"
	ErrParticipantAccessOnly ErrCode = "PARTICIPANT_ACCESS_ONLY"
	ErrStaffAccessOnly       ErrCode = "STAFF_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownAction  ErrCode = "UNKNOWN_ACTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrQuizNotAvailable     ErrCode = "QUIZ_NOT_AVAILABLE"
	ErrRegistrationRejected ErrCode = "REGISTRATION_REJECTED"
	ErrQuizServiceDown      ErrCode = "QUIZ_SERVICE_UNAVAILABLE"

	// ─── Attempt ───────────────────────────────────────────────────────
	ErrLoadFailed        ErrCode = "LOAD_FAILED"
	ErrSubmitFailed      ErrCode = "SUBMIT_FAILED"
	ErrAttemptBusy       ErrCode = "ATTEMPT_BUSY"
	ErrAttemptNotActive  ErrCode = "ATTEMPT_NOT_IN_PROGRESS"
	ErrAttemptFinished   ErrCode = "ATTEMPT_FINISHED"
	ErrAttemptClosed     ErrCode = "ATTEMPT_CLOSED"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"
	ErrOutOfRange        ErrCode = "QUESTION_OUT_OF_RANGE"
	ErrJumpUnsupported   ErrCode = "JUMP_UNSUPPORTED"
	ErrNoConfirmation    ErrCode = "NO_CONFIRMATION_PENDING"
	ErrAlreadySubmitting ErrCode = "ALREADY_SUBMITTING"
	ErrNothingToRetry    ErrCode = "NOTHING_TO_RETRY"

	// ─── Lockdown ──────────────────────────────────────────────────────
	ErrOverrideRejected    ErrCode = "OVERRIDE_REJECTED"
	ErrOverrideUnavailable ErrCode = "OVERRIDE_UNAVAILABLE"
	ErrNoPromptPending     ErrCode = "NO_PROMPT_PENDING"
	ErrNoConsentNeeded     ErrCode = "NO_CONSENT_NEEDED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan masuk kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrParticipantAccessOnly:
		return "Sumber daya ini terbatas untuk peserta kuis."
	case ErrStaffAccessOnly:
		return "Sumber daya ini terbatas untuk pengawas."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrUnknownAction:
		return "Aksi tidak dikenal."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrQuizNotAvailable:
		return "Kuis ini saat ini tidak tersedia."
	case ErrRegistrationRejected:
		return "Pendaftaran ditolak. Periksa kode akses Anda."
	case ErrQuizServiceDown:
		return "Layanan kuis tidak dapat dihubungi. Silakan coba lagi."

	// ─── Attempt ───────────────────────────────────────────────────────
	case ErrLoadFailed:
		return "Gagal memuat kuis. Silakan coba lagi."
	case ErrSubmitFailed:
		return "Gagal mengirim jawaban. Jawaban Anda tetap tersimpan, silakan coba lagi."
	case ErrAttemptBusy:
		return "Permintaan sebelumnya masih diproses."
	case ErrAttemptNotActive:
		return "Kuis tidak sedang berlangsung."
	case ErrAttemptFinished:
		return "Kuis ini sudah selesai."
	case ErrAttemptClosed:
		return "Sesi kuis telah ditutup."
	case ErrUnknownQuestion:
		return "Pertanyaan tidak ditemukan dalam kuis ini."
	case ErrOutOfRange:
		return "Nomor pertanyaan di luar jangkauan."
	case ErrJumpUnsupported:
		return "Lompat langsung hanya tersedia pada mode tampilan semua pertanyaan."
	case ErrNoConfirmation:
		return "Tidak ada konfirmasi pengiriman yang menunggu."
	case ErrAlreadySubmitting:
		return "Jawaban sedang dikirim."
	case ErrNothingToRetry:
		return "Tidak ada yang perlu diulang."

	// ─── Lockdown ──────────────────────────────────────────────────────
	case ErrOverrideRejected:
		return "Kata sandi override salah."
	case ErrOverrideUnavailable:
		return "Override tidak tersedia saat ini."
	case ErrNoPromptPending:
		return "Tidak ada permintaan kata sandi yang aktif."
	case ErrNoConsentNeeded:
		return "Persetujuan layar penuh tidak diperlukan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
