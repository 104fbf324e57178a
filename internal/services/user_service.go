package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tvicl/server/internal/auth"
	"tvicl/server/internal/config"
	dbpkg "tvicl/server/internal/db"
	"tvicl/server/internal/email"
	"tvicl/server/internal/models"
	"tvicl/server/internal/utils"
)

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	FullName string        `json:"fullName" validate:"required"`
	Email    string        `json:"email" validate:"required,email"`
	Password string        `json:"password" validate:"required"`
	Phone    string        `json:"phone" validate:"required"`
	Roles    []models.Role `json:"roles" validate:"omitempty,dive,enum"`
}

// ProfileUpdate changes the account's own contact details. Nil fields are left alone.
type ProfileUpdate struct {
	FullName     *string `json:"fullName"`
	Phone        *string `json:"phone"`
	ProfilePhoto *string `json:"profilePhoto" validate:"omitempty,url"`
}

// RoleUpdate adds a role, switches the active role, or both.
type RoleUpdate struct {
	Role       models.Role `json:"role" validate:"omitempty,enum"`
	MakeActive models.Role `json:"makeActive" validate:"omitempty,enum"`
}

// Registration reports the new account and whether its verification email was queued.
type Registration struct {
	User      *models.User `json:"user"`
	EmailSent bool         `json:"emailSent"`
}

// Session is a signed-in user together with a fresh token pair.
type Session struct {
	User   *models.User
	Tokens *auth.TokenPair
}

// IUserService covers accounts: registration, email verification, sessions, passwords and roles.
type IUserService interface {
	Register(ctx context.Context, in RegisterInput) (*Registration, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	IssueSession(ctx context.Context, user *models.User) (*Session, error)
	Logout(ctx context.Context, userID utils.SixID) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID utils.SixID, update ProfileUpdate) (*models.User, error)
	UpdateRole(ctx context.Context, userID utils.SixID, update RoleUpdate) (*models.User, error)
	SaveProperty(ctx context.Context, userID, propertyID utils.SixID) (bool, error)
}

type userService struct {
	db           *mongo.Database
	cfg          *config.Config
	issuer       auth.Issuer
	actions      IAccountActionService
	mailer       Mailer
	properties   IPropertyService
	interactions IInteractionService
}

// NewUserService creates a UserService. Tokens are signed with the JWT settings in cfg.
func NewUserService(db *mongo.Database, cfg *config.Config, actions IAccountActionService, mailer Mailer, properties IPropertyService, interactions IInteractionService) IUserService {
	return &userService{
		db:           db,
		cfg:          cfg,
		issuer:       auth.NewIssuer(cfg),
		actions:      actions,
		mailer:       mailer,
		properties:   properties,
		interactions: interactions,
	}
}

func (s *userService) coll() *mongo.Collection {
	return s.db.Collection(dbpkg.UsersCollection)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) checkPasswordLength(field, password string, verr *ValidationError) {
	if len(password) < s.cfg.PasswordMinLength {
		verr.add(field, fmt.Sprintf("must be at least %d characters", s.cfg.PasswordMinLength))
	}
}

// Register creates an unverified account and queues its verification email. A failure
// to queue the email does not undo the registration.
func (s *userService) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	verr := &ValidationError{}
	if err := collectViolations(requestValidator, &in, verr); err != nil {
		return nil, err
	}
	if in.Password != "" {
		s.checkPasswordLength("password", in.Password, verr)
	}
	if slices.Contains(in.Roles, models.RoleAdmin) {
		verr.add("roles", "admin cannot be self-assigned")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	var roles []models.Role
	for _, r := range in.Roles {
		if !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		roles = []models.Role{models.RoleBuyer}
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		FullName:        in.FullName,
		Email:           in.Email,
		Phone:           in.Phone,
		PasswordHash:    hash,
		Roles:           roles,
		ActiveRole:      roles[0],
		SavedProperties: []utils.SixID{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = dbpkg.Try(ctx, func() error {
		user.ID = utils.NewSixID()
		_, err := s.coll().InsertOne(ctx, user)
		if dbpkg.IsMongoDuplicateKeyError(err) && strings.Contains(err.Error(), "email") {
			return ErrEmailExists
		}
		return err
	})
	if errors.Is(err, ErrEmailExists) {
		return nil, ErrEmailExists
	}
	if err != nil {
		return nil, storageError("register user", err)
	}
	log.Printf("User %s registered with roles %v", user.ID, user.Roles)

	return &Registration{User: user, EmailSent: s.sendVerification(ctx, user) == nil}, nil
}

func (s *userService) sendVerification(ctx context.Context, user *models.User) error {
	token, _, err := s.actions.CreateAction(ctx, user.ID, models.ActionVerifyEmail)
	if err != nil {
		log.Printf("Failed to create verification action for user %s: %v", user.ID, err)
		return err
	}
	if err := s.mailer.Enqueue(ctx, verificationMessage(s.cfg, user, token)); err != nil {
		log.Printf("Failed to queue verification email for user %s: %v", user.ID, err)
		return err
	}
	return nil
}

// notify queues msg; failures are only logged.
func (s *userService) notify(ctx context.Context, user *models.User, msg email.Message) {
	if err := s.mailer.Enqueue(ctx, msg); err != nil {
		log.Printf("Failed to queue %s email for user %s: %v", msg.Kind, user.ID, err)
	}
}

func (s *userService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	action, err := s.actions.ConsumeAction(ctx, token, models.ActionVerifyEmail)
	if err != nil {
		return nil, err
	}
	return s.updateUser(ctx, action.UserID, bson.M{"$set": bson.M{"verified": true}}, "verify email")
}

// ResendVerification retires earlier verification links and sends a new one.
func (s *userService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}
	if err := s.actions.InvalidateActions(ctx, user.ID, models.ActionVerifyEmail); err != nil {
		return err
	}
	return s.sendVerification(ctx, user)
}

// Login reports ErrUnverified only once the password has matched.
func (s *userService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.Verified {
		return nil, ErrUnverified
	}
	return s.IssueSession(ctx, user)
}

// IssueSession signs a new token pair for user and makes its refresh token the only valid one.
func (s *userService) IssueSession(ctx context.Context, user *models.User) (*Session, error) {
	tokens, err := s.issuer.Issue(auth.Subject{
		UserID:     user.ID,
		ActiveRole: string(user.ActiveRole),
		IsAdmin:    user.IsAdmin(),
	})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	updated, err := s.updateUser(ctx, user.ID, bson.M{"$set": bson.M{
		"refresh_token_hash": auth.HashToken(tokens.RefreshToken),
		"last_login":         now,
	}}, "issue session")
	if err != nil {
		return nil, err
	}
	return &Session{User: updated, Tokens: tokens}, nil
}

// Refresh rotates a refresh token. Only the most recently issued one is accepted.
func (s *userService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := utils.ParseSixID(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.FindByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if user.RefreshTokenHash == "" || user.RefreshTokenHash != auth.HashToken(refreshToken) {
		return nil, ErrInvalidToken
	}
	if !user.Verified {
		return nil, ErrUnverified
	}
	return s.IssueSession(ctx, user)
}

func (s *userService) Logout(ctx context.Context, userID utils.SixID) error {
	_, err := s.coll().UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$unset": bson.M{"refresh_token_hash": ""}})
	if err != nil {
		return storageError("logout", err)
	}
	return nil
}

// ForgotPassword sends a reset link when the email belongs to an account and
// returns nil either way.
func (s *userService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		log.Printf("Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.actions.InvalidateActions(ctx, user.ID, models.ActionPasswordReset); err != nil {
		return err
	}
	token, _, err := s.actions.CreateAction(ctx, user.ID, models.ActionPasswordReset)
	if err != nil {
		return err
	}
	return s.mailer.Enqueue(ctx, passwordResetMessage(s.cfg, user, token))
}

// ResetPassword sets a new password from an emailed token and signs out every session.
func (s *userService) ResetPassword(ctx context.Context, token, password string) error {
	verr := &ValidationError{}
	if password == "" {
		verr.add("password", "is required")
	} else {
		s.checkPasswordLength("password", password, verr)
	}
	if err := verr.orNil(); err != nil {
		return err
	}

	action, err := s.actions.ConsumeAction(ctx, token, models.ActionPasswordReset)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, action.UserID, password)
}

func (s *userService) ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error {
	verr := &ValidationError{}
	if current == "" {
		verr.add("currentPassword", "is required")
	}
	if next == "" {
		verr.add("newPassword", "is required")
	} else {
		s.checkPasswordLength("newPassword", next, verr)
	}
	if err := verr.orNil(); err != nil {
		return err
	}

	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	return s.setPassword(ctx, userID, next)
}

func (s *userService) setPassword(ctx context.Context, userID utils.SixID, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user, err := s.updateUser(ctx, userID, bson.M{
		"$set":   bson.M{"password": hash},
		"$unset": bson.M{"refresh_token_hash": ""},
	}, "set password")
	if err != nil {
		return err
	}
	s.notify(ctx, user, passwordChangedMessage(s.cfg, user))
	return nil
}

func (s *userService) findOne(ctx context.Context, filter bson.M, op string) (*models.User, error) {
	var user models.User
	if err := s.coll().FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storageError(op, err)
	}
	return &user, nil
}

func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": userID}, "find user by id")
}

func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalizeEmail(email)}, "find user by email")
}

// updateUser applies update, stamps updated_at and returns the new document.
func (s *userService) updateUser(ctx context.Context, userID utils.SixID, update bson.M, op string) (*models.User, error) {
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		update["$set"] = set
	}
	set["updated_at"] = time.Now().UTC()

	var user models.User
	err := s.coll().FindOneAndUpdate(ctx, bson.M{"_id": userID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storageError(op, err)
	}
	return &user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID utils.SixID, update ProfileUpdate) (*models.User, error) {
	if err := ValidateRequest(&update); err != nil {
		return nil, err
	}
	set := bson.M{}
	if update.FullName != nil && strings.TrimSpace(*update.FullName) != "" {
		set["full_name"] = strings.TrimSpace(*update.FullName)
	}
	if update.Phone != nil && strings.TrimSpace(*update.Phone) != "" {
		set["phone"] = strings.TrimSpace(*update.Phone)
	}
	if update.ProfilePhoto != nil {
		set["profile_photo"] = *update.ProfilePhoto
	}
	return s.updateUser(ctx, userID, bson.M{"$set": set}, "update profile")
}

// UpdateRole adds update.Role when missing, then makes update.MakeActive the active
// role. The active role must already be held (or be the one being added).
func (s *userService) UpdateRole(ctx context.Context, userID utils.SixID, update RoleUpdate) (*models.User, error) {
	verr := &ValidationError{}
	if err := collectViolations(requestValidator, &update, verr); err != nil {
		return nil, err
	}
	if update.Role == models.RoleAdmin {
		verr.add("role", "admin cannot be self-assigned")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := slices.Clone(user.Roles)
	if update.Role != "" && !slices.Contains(held, update.Role) {
		held = append(held, update.Role)
	}
	if update.MakeActive != "" && !slices.Contains(held, update.MakeActive) {
		return nil, ErrRoleNotHeld
	}

	set := bson.M{}
	if update.MakeActive != "" {
		set["active_role"] = update.MakeActive
	}
	change := bson.M{"$set": set}
	if update.Role != "" {
		change["$addToSet"] = bson.M{"roles": update.Role}
	}
	return s.updateUser(ctx, userID, change, "update role")
}

// SaveProperty adds a property to the user's saved set. The property's saves counter
// grows only the first time; saving again reports false and changes nothing.
func (s *userService) SaveProperty(ctx context.Context, userID, propertyID utils.SixID) (bool, error) {
	if _, err := s.properties.FindPropertyByID(ctx, propertyID); err != nil {
		return false, err
	}

	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": userID, "saved_properties": bson.M{"$ne": propertyID}},
		bson.M{
			"$addToSet": bson.M{"saved_properties": propertyID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, storageError("save property", err)
	}
	if res.ModifiedCount == 0 {
		if _, err := s.FindByID(ctx, userID); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.properties.IncrementCounter(ctx, propertyID, models.CounterSaves); err != nil {
		return true, err
	}
	if err := s.interactions.Record(ctx, userID, propertyID, models.InteractionSave, ""); err != nil {
		log.Printf("Failed to record save interaction for user %s: %v", userID, err)
	}
	return true, nil
}
