package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-ems/internal/shared/apperror"
	"go-ems/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	idempotencyLockTTL   = 30 * time.Second
)

type cachedResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotencyKeys scopes the client key to the company, route, caller and request body, so a
// reused key with a different payload is treated as a new request.
func idempotencyKeys(c *gin.Context, key string) (cacheKey, lockKey string, err error) {
	var body []byte
	if c.Request.Body != nil {
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return "", "", err
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}
	sum := sha256.Sum256(body)
	cacheKey = fmt.Sprintf("idemp:%s:%s:%s:%s:%s",
		c.GetString(string(ContextCompanyID)),
		c.FullPath(),
		c.GetString("user_id_validated"),
		key,
		hex.EncodeToString(sum[:]),
	)
	return cacheKey, cacheKey + ":lock", nil
}

// Idempotency replays the stored response of a POST that carried the same Idempotency-Key.
// A concurrent duplicate gets 409 while the first request still holds the lock. Only 2xx
// responses are stored.
func Idempotency(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("middleware.idempotency")
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method != http.MethodPost || rdb == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey, lockKey, err := idempotencyKeys(c, key)
		if err != nil {
			log.Warn("read request body failed", zap.Error(err))
			response.Abort(c, http.StatusBadRequest, apperror.CodeInvalidInput, "unreadable request body", err.Error())
			return
		}

		if val, err := rdb.Get(ctx, cacheKey).Result(); err == nil {
			var cached cachedResponse
			if json.Unmarshal([]byte(val), &cached) == nil {
				log.Debug("idempotent replay", zap.String("key", cacheKey))
				c.Header("Idempotent-Replayed", "true")
				c.Data(cached.Status, "application/json; charset=utf-8", []byte(cached.Body))
				c.Abort()
				return
			}
		}

		acquired, err := rdb.SetNX(ctx, lockKey, "locked", idempotencyLockTTL).Result()
		if err != nil {
			log.Error("idempotency lock failed", zap.String("key", lockKey), zap.Error(err))
			c.Next()
			return
		}
		if !acquired {
			response.Abort(c, http.StatusConflict, "PROCESSING", "A request with this Idempotency-Key is still being processed", nil)
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = recorder
		c.Next()

		if status := recorder.Status(); status >= 200 && status < 300 {
			data, err := json.Marshal(cachedResponse{Status: status, Body: recorder.body.String()})
			if err == nil {
				if err := rdb.Set(ctx, cacheKey, string(data), ttl).Err(); err != nil {
					log.Error("idempotency store failed", zap.String("key", cacheKey), zap.Error(err))
				}
			}
		}
		if err := rdb.Del(ctx, lockKey).Err(); err != nil {
			log.Error("idempotency unlock failed", zap.String("key", lockKey), zap.Error(err))
		}
	}
}
