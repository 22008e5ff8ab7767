package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
	"golang.org/x/crypto/bcrypt"

	"civilregistry/internal/apperr"
	"civilregistry/internal/models"
	"civilregistry/internal/storage"
)

// Account field bounds. Password bounds are in bytes, the rest in characters;
// bcrypt ignores anything past 72 bytes.
const (
	MinPasswordLength    = 6
	MaxPasswordLength    = 72
	MaxUsernameLength    = 50
	MaxDisplayNameLength = 100
)

const (
	msgUserExists        = "اسم المستخدم مستخدم بالفعل"
	msgUserNotFound      = "المستخدم غير موجود"
	msgProtectedAdmin    = "لا يمكن تعديل حالة المدير الرئيسي"
	msgWrongPassword     = "كلمة المرور الحالية غير صحيحة"
	msgPasswordTooShort  = "كلمة المرور يجب أن تكون 6 أحرف على الأقل"
	msgPasswordTooLong   = "كلمة المرور أطول من الحد المسموح"
	msgFieldRequired     = "هذا الحقل مطلوب"
	msgFieldTooLong      = "القيمة أطول من الحد المسموح"
	msgValidationSummary = "البيانات المدخلة غير صحيحة"
)

type UserService struct {
	store    storage.UserStore
	hashCost int
}

func NewUserService(store storage.UserStore) *UserService {
	return &UserService{store: store, hashCost: bcrypt.DefaultCost}
}

// CreateUserInput carries an admin's account creation request. Nil flags take
// their defaults: not admin, active.
type CreateUserInput struct {
	Username    string
	DisplayName string
	Password    string
	IsAdmin     *bool
	IsActive    *bool
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (models.User, error) {
	username := strings.TrimSpace(in.Username)
	displayName := strings.TrimSpace(in.DisplayName)
	fields := map[string][]string{}
	switch {
	case govalidator.IsNull(username):
		fields["username"] = []string{msgFieldRequired}
	case !govalidator.StringLength(username, "1", strconv.Itoa(MaxUsernameLength)):
		fields["username"] = []string{msgFieldTooLong}
	}
	if !govalidator.StringLength(displayName, "0", strconv.Itoa(MaxDisplayNameLength)) {
		fields["displayName"] = []string{msgFieldTooLong}
	}
	if msg, ok := checkPassword(in.Password); !ok {
		fields["password"] = []string{msg}
	}
	if len(fields) > 0 {
		return models.User{}, apperr.Validation(msgValidationSummary, fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if user.DisplayName == "" {
		user.DisplayName = username
	}
	if in.IsAdmin != nil {
		user.IsAdmin = *in.IsAdmin
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}

	created, err := s.store.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.User{}, apperr.Validation(msgUserExists, map[string][]string{"username": {msgUserExists}})
		}
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// Authenticate checks credentials first and account state second, so an
// inactive account is only revealed to someone who knows its password.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.New(apperr.CodeUnauthenticated, apperr.MsgInvalidCredentials)
		}
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, apperr.New(apperr.CodeUnauthenticated, apperr.MsgInvalidCredentials)
	}

	if !user.IsActive {
		return models.User{}, apperr.New(apperr.CodeAccountInactive, apperr.MsgAccountInactive)
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.New(apperr.CodeNotFound, msgUserNotFound)
		}
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, page models.PageRequest) (models.Page[models.User], error) {
	users, total, err := s.store.ListUsers(ctx, page)
	if err != nil {
		return models.Page[models.User]{}, fmt.Errorf("failed to list users: %w", err)
	}
	return models.NewPage(users, page, total), nil
}

// UpdateStatus toggles an account. The bootstrap admin is rejected whatever
// the requested state.
func (s *UserService) UpdateStatus(ctx context.Context, id int64, active bool) (models.User, error) {
	if id == models.BootstrapAdminID {
		return models.User{}, apperr.New(apperr.CodeForbidden, msgProtectedAdmin)
	}
	if err := s.store.UpdateUserStatus(ctx, id, active); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.New(apperr.CodeNotFound, msgUserNotFound)
		}
		return models.User{}, fmt.Errorf("failed to update status: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, id int64, displayName string) (models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if govalidator.IsNull(displayName) {
		return models.User{}, apperr.Validation(msgValidationSummary, map[string][]string{"displayName": {msgFieldRequired}})
	}
	if !govalidator.StringLength(displayName, "1", strconv.Itoa(MaxDisplayNameLength)) {
		return models.User{}, apperr.Validation(msgValidationSummary, map[string][]string{"displayName": {msgFieldTooLong}})
	}
	if err := s.store.UpdateUserProfile(ctx, id, displayName); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.New(apperr.CodeNotFound, msgUserNotFound)
		}
		return models.User{}, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserService) ChangePassword(ctx context.Context, id int64, currentPassword, newPassword string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperr.Validation(msgWrongPassword, map[string][]string{"currentPassword": {msgWrongPassword}})
	}
	if msg, ok := checkPassword(newPassword); !ok {
		return apperr.Validation(msg, map[string][]string{"newPassword": {msg}})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, id, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// EnsureDefaultAdmin seeds the bootstrap admin on an empty database.
func (s *UserService) EnsureDefaultAdmin(ctx context.Context, username, password string) (bool, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	isAdmin := true
	_, err = s.Create(ctx, CreateUserInput{Username: username, Password: password, IsAdmin: &isAdmin})
	return err == nil, err
}

func checkPassword(password string) (string, bool) {
	if govalidator.ByteLength(password, strconv.Itoa(MinPasswordLength), strconv.Itoa(MaxPasswordLength)) {
		return "", true
	}
	if len(password) < MinPasswordLength {
		return msgPasswordTooShort, false
	}
	return msgPasswordTooLong, false
}
