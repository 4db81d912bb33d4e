// Package auth orchestrates Google sign-in: identity verification, the
// find-or-create step against the user directory, and session issuance.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/google-auth-api/internal/apperrors"
	"github.com/benvon/google-auth-api/internal/database"
	logpkg "github.com/benvon/google-auth-api/internal/logger"
	"github.com/benvon/google-auth-api/internal/metrics"
	"github.com/benvon/google-auth-api/internal/models"
	"github.com/benvon/google-auth-api/internal/services/google"
	"github.com/benvon/google-auth-api/internal/services/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/benvon/google-auth-api/internal/services/auth"

// Defaults applied when Config leaves a field zero
const (
	DefaultSessionTTL      = time.Hour
	DefaultUpstreamTimeout = 5 * time.Second
)

// Config holds the service's tunables
type Config struct {
	SessionTTL      time.Duration
	UpstreamTimeout time.Duration
}

// LoginResult is the outcome of a successful login
type LoginResult struct {
	User    *models.User
	Session *models.SessionToken
	Created bool
}

// Service implements login and profile lookup
type Service struct {
	verifier  google.IdentityVerifier
	directory database.UserDirectory
	issuer    *session.Issuer
	cfg       Config
	logger    *zap.Logger
	metrics   metrics.Recorder
	tracer    trace.Tracer
}

// NewService wires a Service. A nil logger or recorder disables that concern.
func NewService(
	verifier google.IdentityVerifier,
	directory database.UserDirectory,
	issuer *session.Issuer,
	cfg Config,
	logger *zap.Logger,
	recorder metrics.Recorder,
) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Service{
		verifier:  verifier,
		directory: directory,
		issuer:    issuer,
		cfg:       cfg,
		logger:    logger,
		metrics:   recorder,
		tracer:    otel.Tracer(tracerName),
	}
}

// Login verifies a Google ID token, finds or creates the matching user and
// issues a session credential for them.
func (s *Service) Login(ctx context.Context, idToken string) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()

	result, err := s.login(ctx, idToken)
	s.metrics.RecordLogin(outcome(err))
	if err != nil {
		endWithError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("auth.user_created", result.Created))
	return result, nil
}

func (s *Service) login(ctx context.Context, idToken string) (*LoginResult, error) {
	if idToken == "" {
		return nil, fmt.Errorf("%w: token is required", apperrors.ErrBadRequest)
	}

	claims, err := s.verify(ctx, idToken)
	if err != nil {
		s.logger.Info("identity_verification_failed", zap.String("error", logpkg.SanitizeError(err)))
		return nil, err
	}

	user, created, err := s.findOrCreate(ctx, claims)
	if err != nil {
		return nil, err
	}

	tok, err := s.issuer.Issue(models.ClaimsFor(user), s.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("user_logged_in",
		zap.String("user_id", user.ID),
		zap.Bool("created", created),
		zap.Time("expires_at", tok.ExpiresAt),
	)

	return &LoginResult{User: user, Session: tok, Created: created}, nil
}

// Authenticate verifies a session credential and returns its claims
func (s *Service) Authenticate(token string) (*models.SessionClaims, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	return s.issuer.Verify(token)
}

// CurrentUser re-reads the record named by already verified claims. The
// directory is the source of truth, so a deleted user yields ErrUserNotFound
// even while their credential is still valid.
func (s *Service) CurrentUser(ctx context.Context, claims *models.SessionClaims) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.profile")
	defer span.End()

	user, err := s.findByID(ctx, claims.UserID)
	s.metrics.RecordProfile(outcome(err))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			s.logger.Info("profile_user_missing", zap.String("user_id", claims.UserID))
		} else {
			endWithError(span, err)
		}
		return nil, err
	}
	return user, nil
}

// findOrCreate returns the record for the verified subject, creating it on
// first login. A conflict on create means a concurrent login won the race;
// the winner's record is re-read and used.
func (s *Service) findOrCreate(ctx context.Context, claims *models.GoogleClaims) (*models.User, bool, error) {
	user, err := s.findBySubject(ctx, claims.Sub)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, false, err
	}

	user = &models.User{
		GoogleID: claims.Sub,
		Email:    claims.Email,
		Name:     claims.Name,
		Picture:  claims.Picture,
	}
	err = s.create(ctx, user)
	if err == nil {
		s.metrics.RecordUserCreated()
		s.logger.Info("user_created", zap.String("user_id", user.ID))
		return user, true, nil
	}
	if !errors.Is(err, apperrors.ErrConflict) {
		return nil, false, err
	}

	s.metrics.RecordCreateConflict()
	existing, err := s.findBySubject(ctx, claims.Sub)
	if err == nil {
		s.logger.Debug("user_create_conflict_resolved", zap.String("user_id", existing.ID))
		return existing, false, nil
	}
	if errors.Is(err, apperrors.ErrUserNotFound) {
		// the conflicting record belongs to another subject with the same email
		s.logger.Warn("user_email_conflict", zap.String("email", logpkg.MaskEmail(claims.Email)))
		return nil, false, fmt.Errorf("%w: email is registered to another account", apperrors.ErrConflict)
	}
	return nil, false, err
}

func (s *Service) verify(ctx context.Context, idToken string) (*models.GoogleClaims, error) {
	ctx, span := s.tracer.Start(ctx, "auth.verify_identity")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	start := time.Now()
	claims, err := s.verifier.Verify(ctx, idToken)
	s.metrics.ObserveUpstream(metrics.UpstreamIdentityProvider, time.Since(start))
	if err != nil {
		err = apperrors.Upstream(err)
		endWithError(span, err)
		return nil, err
	}
	return claims, nil
}

func (s *Service) findBySubject(ctx context.Context, subjectID string) (*models.User, error) {
	var user *models.User
	err := s.directoryCall(ctx, "directory.find_by_subject", func(ctx context.Context) error {
		var err error
		user, err = s.directory.FindBySubjectID(ctx, subjectID)
		return err
	})
	return user, err
}

func (s *Service) findByID(ctx context.Context, id string) (*models.User, error) {
	var user *models.User
	err := s.directoryCall(ctx, "directory.find_by_id", func(ctx context.Context) error {
		var err error
		user, err = s.directory.FindByID(ctx, id)
		return err
	})
	return user, err
}

func (s *Service) create(ctx context.Context, user *models.User) error {
	return s.directoryCall(ctx, "directory.create", func(ctx context.Context) error {
		return s.directory.Create(ctx, user)
	})
}

// directoryCall runs fn under the upstream timeout inside its own span
func (s *Service) directoryCall(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	start := time.Now()
	err := apperrors.Upstream(fn(ctx))
	s.metrics.ObserveUpstream(metrics.UpstreamDirectory, time.Since(start))

	if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) && !errors.Is(err, apperrors.ErrConflict) {
		endWithError(span, err)
	}
	return err
}

func endWithError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, apperrors.Classify(err).Title)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		return metrics.OutcomeUpstreamFailure
	case errors.Is(err, apperrors.ErrBadRequest), errors.Is(err, apperrors.ErrUnauthorized):
		return metrics.OutcomeBadRequest
	case errors.Is(err, apperrors.ErrVerificationFailed), errors.Is(err, apperrors.ErrInvalidCredential):
		return metrics.OutcomeRejected
	case errors.Is(err, apperrors.ErrUserNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeInternalFailure
	}
}
