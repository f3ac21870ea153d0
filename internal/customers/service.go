package customers

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const invalidCredentialsMessage = "invalid credentials"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

// RegisterInput is a new shopper. An empty password registers a guest who
// can only check out.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name"`
	Surname   string `json:"surname"`
	Password  string `json:"password,omitempty"`
}

type LoginResult struct {
	AccessToken string           `json:"access_token"`
	Customer    *models.Customer `json:"customer"`
}

// ServiceParams bundles the dependencies of the customer service.
type ServiceParams struct {
	Repo   *Repository
	DB     txRunner
	Outbox outboxPublisher
	Hasher passwordHasher
	JWT    config.JWTConfig
	Logger *logger.Logger
}

type Service struct {
	repo   *Repository
	tx     txRunner
	outbox outboxPublisher
	hasher passwordHasher
	jwtCfg config.JWTConfig
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("customer repository is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		repo:   params.Repo,
		tx:     params.DB,
		outbox: params.Outbox,
		hasher: params.Hasher,
		jwtCfg: params.JWT,
		logg:   params.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register creates an account holder. The password is required here; guests
// are only created during checkout.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.Customer, error) {
	if strings.TrimSpace(input.Password) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password is required")
	}
	var customer *models.Customer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		customer, err = s.RegisterTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// RegisterTx creates the customer inside tx and emits customer_registered.
func (s *Service) RegisterTx(ctx context.Context, tx *gorm.DB, input RegisterInput) (*models.Customer, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check customer email")
	}

	customer := &models.Customer{
		ID:        uuid.New(),
		Email:     email,
		FirstName: strings.TrimSpace(input.FirstName),
		Surname:   strings.TrimSpace(input.Surname),
		Role:      enums.CustomerRoleCustomer,
	}
	if input.Password != "" {
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		customer.PasswordHash = &hash
	}
	if err := repo.Create(ctx, customer); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCustomerRegistered,
		AggregateType: enums.AggregateCustomer,
		AggregateID:   customer.ID,
		Data: payloads.CustomerRegisteredEvent{
			CustomerID: customer.ID,
			Email:      customer.Email,
			Guest:      customer.PasswordHash == nil,
		},
	}); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithCustomerID(ctx, customer.ID.String()), "customer registered")
	return customer, nil
}

// ResolveForCheckout returns the customer an order is placed for. A signed
// in shopper is used as is; otherwise a customer is registered from input.
// An anonymous checkout with an email that already has an account must
// sign in first.
func (s *Service) ResolveForCheckout(ctx context.Context, tx *gorm.DB, sessionCustomerID *uuid.UUID, input RegisterInput) (*models.Customer, error) {
	repo := s.repo.WithTx(tx)
	if sessionCustomerID != nil {
		customer, err := repo.FindByID(ctx, *sessionCustomerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
		}
		return customer, nil
	}

	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an account with this email already exists, log in first")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check customer email")
	}
	input.Email = email
	return s.RegisterTx(ctx, tx, input)
}

// FindByID loads a customer, using tx when given.
func (s *Service) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}

// Authenticate checks credentials and mints an access token. Hashes made
// with outdated parameters are replaced on success.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	customer, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer")
	}
	if customer.PasswordHash == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	ok, err := s.hasher.Verify(password, *customer.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	ctx = s.logg.WithCustomerID(ctx, customer.ID.String())
	if s.hasher.NeedsRehash(*customer.PasswordHash) {
		if hash, err := s.hasher.Hash(password); err == nil {
			if err := s.repo.SetPassword(ctx, customer.ID, hash); err != nil {
				s.logg.Error(ctx, "rehash password", err)
			} else {
				customer.PasswordHash = &hash
			}
		}
	}

	now := s.now()
	if err := s.repo.UpdateLastLogin(ctx, customer.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	customer.LastLoginAt = &now

	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		CustomerID: customer.ID,
		Email:      customer.Email,
		Role:       customer.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &LoginResult{AccessToken: token, Customer: customer}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is invalid")
	}
	return email, nil
}
