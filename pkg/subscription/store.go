package subscription

import "context"

// Store persists one Record per user.
//
// Upsert must be atomic per user at the storage level: two concurrent calls for
// the same user never lose each other's fields. Implementations must also keep
// TrialUsed monotonic across Upserts.
type Store interface {
	// Get returns ErrRecordNotFound when the user has no record.
	Get(ctx context.Context, userID int64) (*Record, error)

	// Upsert creates the record from Defaults plus p, or merges p into the
	// existing record, and returns the result.
	Upsert(ctx context.Context, userID int64, p Patch) (*Record, error)

	// CreateIfAbsent inserts Defaults plus p only when no record exists.
	// It returns the stored record and whether it was created.
	CreateIfAbsent(ctx context.Context, userID int64, p Patch) (*Record, bool, error)

	// FindByCustomerID and FindBySubscriptionID return ErrRecordNotFound on a miss.
	FindByCustomerID(ctx context.Context, customerID string) (int64, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (int64, error)

	// FindByEmail matches the normalized address stored by the register hook.
	// It returns ErrRecordNotFound on a miss.
	FindByEmail(ctx context.Context, email string) (int64, error)

	// ResetTrial clears TrialUsed. Administrative use only.
	ResetTrial(ctx context.Context, userID int64) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, userID int64) error
}

func validUserID(userID int64) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	return nil
}
