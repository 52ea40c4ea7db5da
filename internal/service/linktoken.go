package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var ErrLinkTokenInvalid = errors.New("link token is invalid or already used")

// LinkTokenService выдаёт и гасит одноразовые токены входа для ученика.
// Ученику не нужен аккаунт: супервизор шлёт ему ссылку с токеном,
// токен живёт в redis до первого использования или истечения TTL.
type LinkTokenService struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLinkTokenService(addr, password string, db int, ttl time.Duration) *LinkTokenService {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// без redis ссылки для ученика выдать нельзя - это не fail-open путь
		panic("link token service: redis unreachable: " + err.Error())
	}

	return &LinkTokenService{rdb: rdb, ttl: ttl}
}

func linkKey(token string) string {
	return "game_link:" + token
}

func rejoinKey(token string) string {
	return "learner_session:" + token
}

// Issue создаёт одноразовый токен, привязанный к сессии
func (s *LinkTokenService) Issue(ctx context.Context, sessionID string) (string, error) {
	token := uuid.NewString()
	if err := s.rdb.Set(ctx, linkKey(token), sessionID, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Redeem атомарно гасит токен (GETDEL) и проверяет привязку к сессии.
// Повторное использование того же токена всегда отклоняется.
func (s *LinkTokenService) Redeem(ctx context.Context, token, sessionID string) error {
	stored, err := s.rdb.GetDel(ctx, linkKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrLinkTokenInvalid
	}
	if err != nil {
		return err
	}
	if stored != sessionID {
		return ErrLinkTokenInvalid
	}
	return nil
}

// GrantRejoin выдаёт ученику credential на переподключение после того,
// как одноразовая ссылка погашена. В отличие от ссылки он не гасится:
// потеря сети посреди партии не должна выбрасывать ученика насовсем.
func (s *LinkTokenService) GrantRejoin(ctx context.Context, sessionID string) (string, error) {
	token := uuid.NewString()
	if err := s.rdb.Set(ctx, rejoinKey(token), sessionID, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// CheckRejoin проверяет credential переподключения, не гася его
func (s *LinkTokenService) CheckRejoin(ctx context.Context, token, sessionID string) error {
	stored, err := s.rdb.Get(ctx, rejoinKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrLinkTokenInvalid
	}
	if err != nil {
		return err
	}
	if stored != sessionID {
		return ErrLinkTokenInvalid
	}
	return nil
}
