// Package validate sniffs, fingerprints and policy-checks uploaded documents.
package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/common"
)

// ViolationKind names the policy rule a document failed.
type ViolationKind string

const (
	SizeExceeded          ViolationKind = "SizeExceeded"
	MimeNotAllowed        ViolationKind = "MimeNotAllowed"
	ExtensionNotAllowed   ViolationKind = "ExtensionNotAllowed"
	MimeExtensionMismatch ViolationKind = "MimeExtensionMismatch"
	SuspiciousContent     ViolationKind = "SuspiciousContent"
)

// Violation is one failed rule.
type Violation struct {
	Kind    ViolationKind     `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Fingerprint is the content identity of an upload. MimeType is whatever the caller claimed
// and is informational only.
type Fingerprint struct {
	SHA256           string `json:"sha256"`
	MimeType         string `json:"mimeType,omitempty"`
	DetectedMimeType string `json:"detectedMimeType"`
	Extension        string `json:"extension"`
	SizeBytes        uint64 `json:"sizeBytes"`
}

// Outcome is the full validation report; every rule runs even after one fails.
type Outcome struct {
	IsValid     bool        `json:"isValid"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Violations  []Violation `json:"violations,omitempty"`
}

// Has reports whether a violation of the given kind was recorded.
func (o Outcome) Has(kind ViolationKind) bool {
	return slices.ContainsFunc(o.Violations, func(v Violation) bool { return v.Kind == kind })
}

// Error carries a rejected outcome to callers. It matches common.ErrValidationFailed.
type Error struct {
	Outcome Outcome
}

func (e *Error) Error() string {
	kinds := make([]string, 0, len(e.Outcome.Violations))
	for _, v := range e.Outcome.Violations {
		kinds = append(kinds, string(v.Kind))
	}
	return fmt.Sprintf("%s: %s", common.ErrValidationFailed, strings.Join(kinds, ", "))
}

func (e *Error) Unwrap() error { return common.ErrValidationFailed }

// Policy is the intake allow-list. Extensions are compared without the leading dot.
type Policy struct {
	MaxFileSize       int64    `validate:"gt=0"`
	AllowedMimes      []string `validate:"min=1,dive,required"`
	AllowedExtensions []string `validate:"min=1,dive,required"`
}

// DefaultPolicy accepts PDF, JPEG, PNG and TIFF up to 20 MiB.
func DefaultPolicy() Policy {
	return Policy{
		MaxFileSize:       constants.DefaultMaxFileSize,
		AllowedMimes:      slices.Clone(constants.DefaultAllowedMimes),
		AllowedExtensions: slices.Clone(constants.DefaultAllowedExtensions),
	}
}

// PolicyFromConfig builds the process-wide default policy from configuration.
func PolicyFromConfig(cfg common.ValidationConfig) Policy {
	p := Policy{MaxFileSize: cfg.MaxFileSize, AllowedMimes: slices.Clone(cfg.AllowedMimes)}
	for _, e := range cfg.AllowedExtensions {
		p.AllowedExtensions = append(p.AllowedExtensions, constants.NormalizeExt(e))
	}
	return p
}

// Validator checks uploads against a Policy. It holds no per-document state.
type Validator struct {
	logger   *slog.Logger
	validate *validator.Validate
}

func New(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger, validate: validator.New()}
}

// Validate reads filePath unless data is supplied, fingerprints the bytes and applies policy.
// The returned error is reserved for unreadable input or an invalid policy; rule failures are
// reported in the Outcome.
func (v *Validator) Validate(filePath string, data []byte, claimedMime string, policy Policy) (Outcome, []byte, error) {
	if err := v.validate.Struct(policy); err != nil {
		return Outcome{}, nil, common.NewAppError("INVALID_POLICY", err.Error(), common.ErrInvalidInput)
	}
	if data == nil {
		if filePath == "" {
			return Outcome{}, nil, common.NewAppError("INVALID_INPUT", "either a path or a buffer is required", common.ErrInvalidInput)
		}
		b, err := os.ReadFile(filePath)
		if err != nil {
			v.logger.Error("validate.read_failed", "path", filePath, "error", err)
			return Outcome{}, nil, fmt.Errorf("read %s: %w", filePath, err)
		}
		data = b
	}

	fp := FingerprintOf(data, filePath, claimedMime)
	out := Outcome{Fingerprint: fp}

	if int64(len(data)) > policy.MaxFileSize {
		out.Violations = append(out.Violations, Violation{
			Kind:    SizeExceeded,
			Message: fmt.Sprintf("file is %d bytes; limit is %d", len(data), policy.MaxFileSize),
			Details: map[string]string{"size": fmt.Sprint(len(data)), "max": fmt.Sprint(policy.MaxFileSize)},
		})
	}
	if !slices.Contains(policy.AllowedMimes, fp.DetectedMimeType) {
		out.Violations = append(out.Violations, Violation{
			Kind:    MimeNotAllowed,
			Message: fmt.Sprintf("detected type %s is not allowed", fp.DetectedMimeType),
			Details: map[string]string{"detectedMimeType": fp.DetectedMimeType},
		})
	}
	if !slices.Contains(policy.AllowedExtensions, fp.Extension) {
		out.Violations = append(out.Violations, Violation{
			Kind:    ExtensionNotAllowed,
			Message: fmt.Sprintf("extension %q is not allowed", fp.Extension),
			Details: map[string]string{"extension": fp.Extension},
		})
	}
	if fp.Extension != "" && !slices.Contains(constants.MimeExtensions[fp.DetectedMimeType], fp.Extension) {
		out.Violations = append(out.Violations, Violation{
			Kind:    MimeExtensionMismatch,
			Message: fmt.Sprintf("extension %q does not match detected type %s", fp.Extension, fp.DetectedMimeType),
			Details: map[string]string{"extension": fp.Extension, "detectedMimeType": fp.DetectedMimeType},
		})
	}
	if findings := scanSuspicious(data, fp.DetectedMimeType); len(findings) > 0 {
		out.Violations = append(out.Violations, Violation{
			Kind:    SuspiciousContent,
			Message: "content matched suspicious markers",
			Details: map[string]string{"findings": strings.Join(findings, "; ")},
		})
	}

	out.IsValid = len(out.Violations) == 0
	if !out.IsValid {
		v.logger.Info("validate.rejected",
			"sha256", fp.SHA256,
			"detected_mime", fp.DetectedMimeType,
			"extension", fp.Extension,
			"violations", len(out.Violations),
		)
	} else {
		v.logger.Debug("validate.ok", "sha256", fp.SHA256, "detected_mime", fp.DetectedMimeType, "size", fp.SizeBytes)
	}
	return out, data, nil
}

// FingerprintOf computes the content identity. Only the bytes decide SHA256 and DetectedMimeType.
func FingerprintOf(data []byte, name, claimedMime string) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint{
		SHA256:           hex.EncodeToString(sum[:]),
		MimeType:         claimedMime,
		DetectedMimeType: DetectMime(data),
		Extension:        constants.NormalizeExt(filepath.Ext(name)),
		SizeBytes:        uint64(len(data)),
	}
}
