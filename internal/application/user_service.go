package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platformlab/auth-service/internal/domain/entity"
	repo "github.com/platformlab/auth-service/internal/domain/repository"
	"github.com/platformlab/auth-service/pkg/events"
	"github.com/platformlab/auth-service/pkg/helpers"
	"github.com/platformlab/auth-service/pkg/token"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

const providerLocal = "local"

// EventPublisher is the detached publication path. Implementations must
// return immediately; the request never waits on delivery.
type EventPublisher interface {
	Publish(ev events.Event)
}

// LoginEventPolicy decides, per business, whether user_loggedIn events fire.
type LoginEventPolicy func(business string) bool

type Service struct {
	Repo        repo.UserRepository
	Signer      *token.Signer
	Publisher   EventPublisher
	Logger      *logrus.Logger
	LoginEvents LoginEventPolicy
	BcryptCost  int
}

func NewService(r repo.UserRepository, signer *token.Signer, pub EventPublisher, logger *logrus.Logger, policy LoginEventPolicy, bcryptCost int) *Service {
	if policy == nil {
		policy = func(string) bool { return true }
	}
	return &Service{Repo: r, Signer: signer, Publisher: pub, Logger: logger, LoginEvents: policy, BcryptCost: bcryptCost}
}

// Session is the issued token plus its expiry, attached to the response as
// a cookie by the handler.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

type RegisterInput struct {
	Name     string
	Email    string
	Username string
	Password string
	Business string
}

// NormalizeEmail lowers and trims an email so uniqueness checks and lookups
// agree with the lower(email) index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user, issues a session, and fires user_registered.
// Event publication is detached: its failure cannot undo the signup.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, Session, error) {
	hash, err := helpers.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return nil, Session{}, err
	}
	u := &entity.User{
		Email:    NormalizeEmail(in.Email),
		Username: in.Username,
		Name:     in.Name,
		Business: in.Business,
		Password: hash,
		Provider: providerLocal,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, Session{}, ErrEmailTaken
		}
		return nil, Session{}, err
	}
	sess, err := s.issue(u, providerLocal)
	if err != nil {
		return nil, Session{}, err
	}
	s.Publisher.Publish(events.UserRegistered(u.ID, u.Email, u.Name, u.Business))
	return u, sess, nil
}

// Login validates credentials and issues a session. Failures are collapsed
// into ErrInvalidCredentials so callers cannot learn whether the email
// exists. user_loggedIn fires only for businesses the policy enables.
func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, Session, error) {
	u, err := s.Repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil || u == nil {
		return nil, Session{}, ErrInvalidCredentials
	}
	ok, err := helpers.VerifyPassword(u.Password, password)
	if err != nil {
		// Corrupt stored hash: the record is unusable, the caller just
		// sees a failed login.
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("stored credential unusable")
		}
		return nil, Session{}, ErrInvalidCredentials
	}
	if !ok {
		return nil, Session{}, ErrInvalidCredentials
	}
	sess, err := s.issue(u, u.Provider)
	if err != nil {
		return nil, Session{}, err
	}
	if s.LoginEvents(u.Business) {
		s.Publisher.Publish(events.UserLoggedIn(u.ID, u.Email, u.Name, u.Business))
	}
	return u, sess, nil
}

// ExternalPrincipal is a verified identity returned by an external
// provider's consent flow.
type ExternalPrincipal struct {
	Email    string
	Name     string
	Provider string
	Business string
}

// ExternalLogin behaves as login for known emails and as signup for new
// ones. New users get an unguessable random password; they can only enter
// through the provider until they set one.
func (s *Service) ExternalLogin(ctx context.Context, p ExternalPrincipal) (*entity.User, Session, bool, error) {
	email := NormalizeEmail(p.Email)
	u, err := s.Repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		sess, ierr := s.issue(u, p.Provider)
		if ierr != nil {
			return nil, Session{}, false, ierr
		}
		if s.LoginEvents(u.Business) {
			s.Publisher.Publish(events.UserLoggedIn(u.ID, u.Email, u.Name, u.Business))
		}
		return u, sess, false, nil
	case errors.Is(err, repo.ErrNotFound):
		pwd, perr := randomPassword()
		if perr != nil {
			return nil, Session{}, false, perr
		}
		hash, herr := helpers.HashPassword(pwd, s.BcryptCost)
		if herr != nil {
			return nil, Session{}, false, herr
		}
		u = &entity.User{
			Email:    email,
			Username: usernameFromEmail(email),
			Name:     p.Name,
			Business: p.Business,
			Password: hash,
			Provider: p.Provider,
		}
		if cerr := s.Repo.Create(ctx, u); cerr != nil {
			if errors.Is(cerr, repo.ErrDuplicateEmail) {
				return nil, Session{}, false, ErrEmailTaken
			}
			return nil, Session{}, false, cerr
		}
		sess, ierr := s.issue(u, p.Provider)
		if ierr != nil {
			return nil, Session{}, false, ierr
		}
		s.Publisher.Publish(events.UserRegistered(u.ID, u.Email, u.Name, u.Business))
		return u, sess, true, nil
	default:
		return nil, Session{}, false, err
	}
}

func (s *Service) issue(u *entity.User, provider string) (Session, error) {
	tok, exp, err := s.Signer.Issue(u.ID, u.Business, provider)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("token issuance failed")
		}
		return Session{}, err
	}
	return Session{Token: tok, ExpiresAt: exp}, nil
}

func randomPassword() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func usernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
