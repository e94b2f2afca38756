// Package email sends transactional mail through Postmark, or writes it to disk
// in development.
//
//	sender, err := email.New(cfg)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Your trial ends soon",
//		BodyHTML: body,
//		Tag:      "trial_ending",
//	})
package email
