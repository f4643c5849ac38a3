package service

import (
	"context"
	"errors"

	"chatline/internal/domain"
)

// loadProfile builds the public profile for a user, with the avatar file
// attached when one is set. A missing avatar row degrades to no avatar.
func loadProfile(ctx context.Context, users domain.UserRepository, files domain.FileRepository, userID int64) (*domain.Profile, error) {
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := u.PublicProfile()
	if u.AvatarFileID != nil {
		avatar, err := files.GetByID(ctx, *u.AvatarFileID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		p.Avatar = avatar
	}
	return p, nil
}
