package mailer

type Service interface {
	SendVerificationEmail(toEmail, toName, verifyURL, token string) error
	SendPasswordResetEmail(toEmail, resetURL, token string) error
	SendCouponEmail(toEmail, dealTitle, code string) error
}
