package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/auth"
	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/notify"
)

type authFixture struct {
	svc   *AuthService
	store *memStore
	mail  *recordingPublisher
}

func newTestAuthService(t *testing.T) authFixture {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	// Cost 4 is the bcrypt minimum and keeps the tests fast.
	ps := auth.NewPasswordServiceForTest(4)

	store := newMemStore()
	mail := &recordingPublisher{}
	svc := NewAuthService(store, ts, ps, auth.NewOTPStore(newTestCache(t)), mail, discardLogger())
	return authFixture{svc: svc, store: store, mail: mail}
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// lastCode pulls the code out of the most recent OTP email.
func (f authFixture) lastCode(t *testing.T) string {
	t.Helper()
	msgs := f.mail.byKind(notify.KindOTP)
	require.NotEmpty(t, msgs, "no OTP email was sent")
	code := codePattern.FindString(msgs[len(msgs)-1].Body)
	require.NotEmpty(t, code)
	return code
}

// =========================================================================
// Google
// =========================================================================

func TestLoginGoogle_NewUserGetsWelcome(t *testing.T) {
	f := newTestAuthService(t)

	res, err := f.svc.LoginGoogle(context.Background(), &auth.GoogleUser{
		Sub: "g-1", Email: "Asha@Example.com", EmailVerified: true, Name: "Asha",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "asha@example.com", res.User.Email)
	assert.Equal(t, model.LoginGoogle, res.User.LoginType)
	assert.True(t, res.User.EmailVerified)
	assert.Len(t, f.mail.byKind(notify.KindWelcome), 1)

	userID, err := f.svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, userID)
}

func TestLoginGoogle_ReturningUserNoSecondWelcome(t *testing.T) {
	f := newTestAuthService(t)
	gu := &auth.GoogleUser{Sub: "g-1", Email: "asha@example.com", EmailVerified: true, Name: "Asha"}

	first, err := f.svc.LoginGoogle(context.Background(), gu)
	require.NoError(t, err)
	gu.Name = "Asha K"
	second, err := f.svc.LoginGoogle(context.Background(), gu)
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "Asha K", second.User.Name)
	assert.Len(t, f.mail.byKind(notify.KindWelcome), 1)
}

func TestLoginGoogle_NameFallsBackToMailbox(t *testing.T) {
	f := newTestAuthService(t)

	res, err := f.svc.LoginGoogle(context.Background(), &auth.GoogleUser{Sub: "g-2", Email: "ravi@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "ravi", res.User.Name)
}

func TestLoginGoogle_EmailTakenByPasswordUser(t *testing.T) {
	f := newTestAuthService(t)
	f.store.addUser(t, "Asha", "asha@example.com")

	_, err := f.svc.LoginGoogle(context.Background(), &auth.GoogleUser{Sub: "g-1", Email: "asha@example.com"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestLoginGoogle_Nil(t *testing.T) {
	f := newTestAuthService(t)
	_, err := f.svc.LoginGoogle(context.Background(), nil)
	assert.Error(t, err)
}

// =========================================================================
// Email + password
// =========================================================================

func TestRegisterVerifyLogin(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{Name: " Asha ", Email: "ASHA@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.False(t, user.EmailVerified)

	// Unverified accounts cannot sign in yet.
	_, err = f.svc.Login(ctx, "asha@example.com", "correct horse")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	res, err := f.svc.VerifyEmail(ctx, "asha@example.com", f.lastCode(t))
	require.NoError(t, err)
	assert.True(t, res.User.EmailVerified)
	assert.NotEmpty(t, res.Token)
	assert.Len(t, f.mail.byKind(notify.KindWelcome), 1)

	res, err = f.svc.Login(ctx, "Asha@Example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"missing name", RegisterInput{Email: "a@example.com", Password: "password1"}, "name"},
		{"bad email", RegisterInput{Name: "A", Email: "not-an-email", Password: "password1"}, "email"},
		{"short password", RegisterInput{Name: "A", Email: "a@example.com", Password: "short"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestAuthService(t)
			_, err := f.svc.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestRegister_AgainBeforeVerifyingSendsNewCode(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	first, err := f.svc.Register(ctx, RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "password-one"})
	require.NoError(t, err)
	second, err := f.svc.Register(ctx, RegisterInput{Name: "Asha R", Email: "asha@example.com", Password: "password-two"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.mail.byKind(notify.KindOTP), 2)

	_, err = f.svc.VerifyEmail(ctx, "asha@example.com", f.lastCode(t))
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "asha@example.com", "password-two")
	assert.NoError(t, err)
}

func TestRegister_VerifiedEmailConflicts(t *testing.T) {
	f := newTestAuthService(t)
	f.store.addUser(t, "Asha", "asha@example.com")

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "X", Email: "asha@example.com", Password: "password1"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestVerifyEmail_WrongAndReusedCode(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "password1"})
	require.NoError(t, err)
	code := f.lastCode(t)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = f.svc.VerifyEmail(ctx, "asha@example.com", wrong)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.VerifyEmail(ctx, "asha@example.com", code)
	require.NoError(t, err)

	// Codes are single use.
	_, err = f.svc.VerifyEmail(ctx, "asha@example.com", code)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestVerifyEmail_UnknownEmail(t *testing.T) {
	f := newTestAuthService(t)
	_, err := f.svc.VerifyEmail(context.Background(), "nobody@example.com", "123456")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestResendOTP(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "password1"})
	require.NoError(t, err)
	require.NoError(t, f.svc.ResendOTP(ctx, "asha@example.com"))
	assert.Len(t, f.mail.byKind(notify.KindOTP), 2)

	// Unknown and verified addresses succeed without sending anything.
	f.store.addUser(t, "Ravi", "ravi@example.com")
	require.NoError(t, f.svc.ResendOTP(ctx, "nobody@example.com"))
	require.NoError(t, f.svc.ResendOTP(ctx, "ravi@example.com"))
	assert.Len(t, f.mail.byKind(notify.KindOTP), 2)
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "password1"})
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(ctx, "asha@example.com", f.lastCode(t))
	require.NoError(t, err)

	_, err = f.svc.LoginGoogle(ctx, &auth.GoogleUser{Sub: "g-9", Email: "gina@example.com", Name: "Gina"})
	require.NoError(t, err)

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "asha@example.com", "password2"},
		{"unknown email", "nobody@example.com", "password1"},
		{"google account", "gina@example.com", "anything1"},
		{"malformed email", "nope", "password1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, apperror.ErrUnauthorized)
		})
	}
}

func TestRegister_MailFailureDoesNotFailRequest(t *testing.T) {
	f := newTestAuthService(t)
	f.mail.err = errors.New("smtp down")

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "password1"})
	assert.NoError(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	f := newTestAuthService(t)
	_, err := f.svc.ValidateToken("this.is.garbage")
	assert.Error(t, err)
}
