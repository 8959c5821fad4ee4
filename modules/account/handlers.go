package account

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/rollcall/handler"
	"github.com/dmitrymomot/rollcall/pkg/clientip"
	"github.com/dmitrymomot/rollcall/svc/auth"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

type (
	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	emailRequest struct {
		Email string `json:"email"`
	}
	tokenRequest struct {
		Token string `path:"token" json:"-"`
	}
	resetPasswordRequest struct {
		Token       string `path:"token" json:"-"`
		NewPassword string `json:"newPassword"`
	}
	otpResetRequest struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	emailChangeRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	changePasswordRequest struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	createAccountRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Email    string `json:"email"`
		FullName string `json:"fullName"`
	}
	noRequest struct{}
)

type userView struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Role            string     `json:"role"`
	FullName        string     `json:"fullName,omitempty"`
	Email           string     `json:"email,omitempty"`
	PendingEmail    string     `json:"pendingEmail,omitempty"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
}

func newUserView(rec *credential.Record) userView {
	return userView{
		ID:              rec.ID,
		Username:        rec.Username,
		Role:            rec.Role.String(),
		FullName:        rec.FullName,
		Email:           rec.Email,
		PendingEmail:    rec.PendingEmail,
		IsEmailVerified: rec.IsEmailVerified,
		LastLogin:       rec.LastLoginAt,
	}
}

type attemptView struct {
	LoginTime time.Time `json:"loginTime"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Success   bool      `json:"success"`
}

type messageView struct {
	Message   string     `json:"message"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (m *Module) login(ctx handler.Context, req loginRequest) handler.Response {
	r := ctx.Request()
	ip := clientip.FromContext(ctx)
	if ip == "" {
		ip = clientip.GetIP(r)
	}

	sess, err := m.svc.Login(ctx, auth.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		IP:        ip,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		return handler.Error(mapError(err))
	}
	return handler.JSON(map[string]any{
		"token":     sess.Token,
		"expiresAt": sess.ExpiresAt,
		"user":      newUserView(sess.User),
	})
}

func (m *Module) me(ctx handler.Context, _ noRequest) handler.Response {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return handler.Error(handler.ErrUnauthorized)
	}
	rec, err := m.svc.Me(ctx, id.UserID)
	if err != nil {
		return handler.Error(mapError(err, status(auth.ErrUserNotFound, http.StatusNotFound)))
	}
	return handler.JSON(map[string]any{"user": newUserView(rec)})
}

func (m *Module) loginHistory(ctx handler.Context, _ noRequest) handler.Response {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return handler.Error(handler.ErrUnauthorized)
	}
	history, err := m.svc.LoginHistory(ctx, id.UserID)
	if err != nil {
		return handler.Error(mapError(err, status(auth.ErrUserNotFound, http.StatusNotFound)))
	}
	views := make([]attemptView, 0, len(history))
	for _, a := range history {
		views = append(views, attemptView{LoginTime: a.At, IPAddress: a.IPAddress, UserAgent: a.UserAgent, Success: a.Success})
	}
	return handler.JSON(map[string]any{"history": views})
}

func (m *Module) forgotPassword(ctx handler.Context, req emailRequest) handler.Response {
	d, err := m.svc.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		return handler.Error(mapError(err))
	}
	return delivered("Password reset link sent to your email", d)
}

func (m *Module) verifyResetToken(ctx handler.Context, req tokenRequest) handler.Response {
	if err := m.svc.CheckResetToken(ctx, req.Token); err != nil {
		return handler.Error(mapError(err))
	}
	return handler.JSON(map[string]any{"valid": true, "message": "Token is valid"})
}

func (m *Module) resetPassword(ctx handler.Context, req resetPasswordRequest) handler.Response {
	if err := m.svc.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		return handler.Error(mapError(err))
	}
	return handler.JSON(messageView{Message: "Password has been reset successfully"})
}

func (m *Module) sendOTPReset(ctx handler.Context, req emailRequest) handler.Response {
	d, err := m.svc.RequestOTPReset(ctx, req.Email)
	if err != nil {
		return handler.Error(mapError(err))
	}
	return delivered("OTP sent to your email", d)
}

func (m *Module) verifyOTPReset(ctx handler.Context, req otpResetRequest) handler.Response {
	if err := m.svc.ResetPasswordWithOTP(ctx, req.Email, req.OTP, req.NewPassword); err != nil {
		return handler.Error(mapError(err))
	}
	return handler.JSON(messageView{Message: "Password has been reset successfully"})
}

func (m *Module) sendEmailVerification(ctx handler.Context, req emailChangeRequest) handler.Response {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return handler.Error(handler.ErrUnauthorized)
	}
	d, err := m.svc.RequestEmailVerification(ctx, id.UserID, req.Password, req.Email)
	if err != nil {
		return handler.Error(mapError(err, status(auth.ErrIncorrectPassword, http.StatusUnauthorized)))
	}
	return delivered("Verification email sent", d)
}

func (m *Module) linkEmail(ctx handler.Context, req emailChangeRequest) handler.Response {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return handler.Error(handler.ErrUnauthorized)
	}
	d, err := m.svc.LinkEmail(ctx, id.UserID, req.Password, req.Email)
	if err != nil {
		return handler.Error(mapError(err))
	}
	return delivered("Verification email sent to the new address", d)
}

func (m *Module) verifyEmail(ctx handler.Context, req tokenRequest) handler.Response {
	res, err := m.svc.VerifyEmail(ctx, req.Token)
	if err != nil {
		return handler.Error(mapError(err))
	}
	msg := "Email verified successfully"
	if res.AlreadyVerified {
		msg = "Email is already verified"
	}
	return handler.JSON(map[string]any{
		"message":         msg,
		"email":           res.Email,
		"alreadyVerified": res.AlreadyVerified,
	})
}

func (m *Module) changePassword(ctx handler.Context, req changePasswordRequest) handler.Response {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return handler.Error(handler.ErrUnauthorized)
	}
	if err := m.svc.ChangePassword(ctx, id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return handler.Error(mapError(err, status(auth.ErrUserNotFound, http.StatusNotFound)))
	}
	return handler.JSON(messageView{Message: "Password changed successfully"})
}

func (m *Module) createAccount(ctx handler.Context, req createAccountRequest) handler.Response {
	rec, err := m.svc.CreateAccount(ctx, auth.CreateAccountInput{
		Username: req.Username,
		Password: req.Password,
		Role:     credential.Role(req.Role),
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		return handler.Error(mapError(err))
	}
	return handler.JSON(map[string]any{"user": newUserView(rec)}, handler.WithJSONStatus(http.StatusCreated))
}

// delivered reports a token issuance. A failed email keeps status 200 and
// adds meta.warning.
func delivered(msg string, d *auth.Delivery) handler.Response {
	body := messageView{Message: msg, Email: d.Recipient}
	if !d.ExpiresAt.IsZero() {
		body.ExpiresAt = &d.ExpiresAt
	}
	if d.Warning == "" {
		return handler.JSON(body)
	}
	body.Message = "Token issued but the email could not be delivered. Please try again later."
	return handler.JSON(body, handler.WithJSONMeta(map[string]any{"warning": d.Warning}))
}
