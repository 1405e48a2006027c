package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grupocyc/compras/internal/purchasing/entity"
	"github.com/grupocyc/compras/internal/purchasing/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const subordinateCacheTTL = 5 * time.Minute

// AuthorizationService answers "who may act on whose requisitions".
// The graph is flat: only a direct active edge authorizer -> authorized
// grants anything, edges never chain.
type AuthorizationService struct {
	repo   *repository.AuthorizationRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewAuthorizationService(repo *repository.AuthorizationRepository, rdb *redis.Client, logger *zap.Logger) *AuthorizationService {
	return &AuthorizationService{repo: repo, rdb: rdb, logger: logger}
}

// IsAuthorizer reports whether authorizer holds an active edge of the
// given type over the creator. A user is never their own authorizer.
func (s *AuthorizationService) IsAuthorizer(ctx context.Context, authorizerID, creatorID uint, authType string) (bool, error) {
	if authorizerID == creatorID {
		return false, nil
	}
	ok, err := s.repo.HasActiveEdge(ctx, authorizerID, creatorID, authType)
	if err != nil {
		return false, translateDBError(err)
	}
	return ok, nil
}

// SubordinateIDs returns the distinct ids of users the given user holds
// any active edge over. Results are cached in redis for a short TTL; a
// nil or unreachable redis degrades to a direct query.
func (s *AuthorizationService) SubordinateIDs(ctx context.Context, userID uint) ([]uint, error) {
	key := s.cacheKey(userID)
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
			var ids []uint
			if json.Unmarshal([]byte(raw), &ids) == nil {
				return ids, nil
			}
		}
	}

	ids, err := s.repo.SubordinateIDs(ctx, userID)
	if err != nil {
		return nil, translateDBError(err)
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(ids); err == nil {
			if err := s.rdb.Set(ctx, key, raw, subordinateCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache subordinate ids", zap.Uint("user_id", userID), zap.Error(err))
			}
		}
	}
	return ids, nil
}

// InvalidateSubordinates drops the cached id set after an edge changes.
func (s *AuthorizationService) InvalidateSubordinates(ctx context.Context, userID uint) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, s.cacheKey(userID)).Err(); err != nil {
		s.logger.Warn("failed to invalidate subordinate cache", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// ListGranted returns the active edges the user holds, with the
// authorized users preloaded, ordered by hierarchy level.
func (s *AuthorizationService) ListGranted(ctx context.Context, userID uint) ([]entity.Authorization, error) {
	edges, err := s.repo.ListGranted(ctx, userID)
	if err != nil {
		return nil, translateDBError(err)
	}
	return edges, nil
}

func (s *AuthorizationService) cacheKey(userID uint) string {
	return fmt.Sprintf("compras:subordinates:%d", userID)
}
