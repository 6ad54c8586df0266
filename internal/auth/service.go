package auth

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"github.com/2beens/blogapi/internal/telemetry/metrics"
	"github.com/2beens/blogapi/internal/telemetry/tracing"
	"github.com/2beens/blogapi/internal/user"
	"github.com/2beens/blogapi/pkg"
)

var ErrInvalidCredentials = pkg.NewError(pkg.ErrUnauthorized, "Invalid email or password")

// bcrypt only looks at the first 72 bytes and refuses anything longer.
const maxPasswordBytes = 72

// dummyPasswordHash is compared against when the email is unknown, so a
// failed login costs one bcrypt round either way.
var dummyPasswordHash = sync.OnceValue(func() string {
	hash, err := pkg.HashPassword("blogapi-dummy-password")
	if err != nil {
		log.Errorf("failed to hash dummy password: %s", err)
	}
	return hash
})

type Credentials struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type userRepo interface {
	Add(ctx context.Context, u *user.User) error
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

type Service struct {
	users          userRepo
	issuer         *TokenIssuer
	redisClient    *redis.Client
	validate       *validator.Validate
	metricsManager *metrics.Manager
}

func NewAuthService(
	users userRepo,
	issuer *TokenIssuer,
	redisClient *redis.Client,
	metricsManager *metrics.Manager,
) *Service {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		users:          users,
		issuer:         issuer,
		redisClient:    redisClient,
		validate:       validate,
		metricsManager: metricsManager,
	}
}

func (s *Service) Register(ctx context.Context, creds Credentials) (_ *user.User, _ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.auth.register")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	creds.Name = strings.TrimSpace(creds.Name)
	creds.Email = user.NormalizeEmail(creds.Email)
	if err := s.validate.Struct(creds); err != nil {
		return nil, "", validationError(err)
	}
	if len(creds.Password) > maxPasswordBytes {
		return nil, "", pkg.NewError(pkg.ErrValidation, fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	passwordHash, err := pkg.HashPassword(creds.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, "", pkg.NewError(pkg.ErrValidation, err.Error())
		}
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		Name:         creds.Name,
		Email:        creds.Email,
		PasswordHash: passwordHash,
	}
	if err := s.users.Add(ctx, u); err != nil {
		return nil, "", fmt.Errorf("add user: %w", err)
	}
	s.metricsManager.CounterRegistrations.Inc()

	token, _, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}

	log.Debugf("user %s registered", u.ID)
	return u, token, nil
}

func (s *Service) Login(ctx context.Context, creds Credentials) (_ *user.User, _ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.auth.login")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	creds.Email = user.NormalizeEmail(creds.Email)
	if err := s.validate.StructPartial(creds, "Email"); err != nil {
		return nil, "", validationError(err)
	}
	if creds.Password == "" {
		return nil, "", pkg.NewError(pkg.ErrValidation, "password is required")
	}

	u, err := s.users.GetByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			pkg.CheckPasswordHash(creds.Password, dummyPasswordHash())
			s.metricsManager.CounterLogins.WithLabelValues("failed").Inc()
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	if !pkg.CheckPasswordHash(creds.Password, u.PasswordHash) {
		s.metricsManager.CounterLogins.WithLabelValues("failed").Inc()
		return nil, "", ErrInvalidCredentials
	}

	token, _, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}
	s.metricsManager.CounterLogins.WithLabelValues("ok").Inc()

	return u, token, nil
}

// Logout revokes the token until it would expire on its own.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.auth.logout")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	claims, err := s.issuer.Parse(token)
	if err != nil {
		return err
	}

	ttl := claims.ExpiresAt.Sub(s.issuer.NowFunc())
	if ttl <= 0 {
		return nil
	}

	if err := s.redisClient.Set(ctx, revokedTokenKeyPrefix+claims.ID, claims.Subject, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	log.Debugf("user %s logged out", claims.Subject)
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return pkg.NewError(pkg.ErrValidation, err.Error())
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "email":
		msg = "Invalid email address"
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return pkg.NewError(pkg.ErrValidation, msg)
}
