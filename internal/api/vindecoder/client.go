// Package vindecoder VIN 解码客户端（NHTSA vPIC），带 Redis 缓存和请求限流
package vindecoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/langchou/partfit/internal/models"
)

// DefaultBaseURL NHTSA vPIC 接口地址
const DefaultBaseURL = "https://vpic.nhtsa.dot.gov/api/vehicles"

const (
	cacheKeyPrefix = "vin:"
	notFoundMarker = "null"
)

// Cache 解码结果缓存
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache 基于 Redis 的缓存
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// Get 读取缓存
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set 写入缓存
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Config 客户端参数
type Config struct {
	BaseURL    string
	CacheTTL   time.Duration
	RatePerSec float64
	Timeout    time.Duration
}

// Client VIN 解码客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	ttl        time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient 创建 VIN 解码客户端；cache 可为 nil
func NewClient(cfg Config, cache Cache, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:   cache,
		ttl:     cfg.CacheTTL,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
		logger:  logger,
	}
}

// decodeResponse vPIC DecodeVinValues 响应
type decodeResponse struct {
	Count   int            `json:"Count"`
	Message string         `json:"Message"`
	Results []decodeResult `json:"Results"`
}

type decodeResult struct {
	VIN       string `json:"VIN"`
	Make      string `json:"Make"`
	Model     string `json:"Model"`
	ModelYear string `json:"ModelYear"`
	BodyClass string `json:"BodyClass"`
	ErrorCode string `json:"ErrorCode"`
	ErrorText string `json:"ErrorText"`
}

// Decode 解码已规范化的 VIN；注册库中没有对应车辆时返回 nil, nil
func (c *Client) Decode(ctx context.Context, vin string) (*models.DecodedVehicle, error) {
	key := cacheKeyPrefix + vin
	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Warn("VIN cache read failed", zap.String("vin", vin), zap.Error(err))
		} else if ok {
			return decodeCached(cached)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait rate limit: %w", err)
	}

	decoded, err := c.fetch(ctx, vin)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, decoded)
	return decoded, nil
}

func (c *Client) fetch(ctx context.Context, vin string) (*models.DecodedVehicle, error) {
	apiURL := fmt.Sprintf("%s/DecodeVinValues/%s?format=json", c.baseURL, url.PathEscape(vin))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vpic api returned status %d", resp.StatusCode)
	}

	var result decodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Results) == 0 {
		return nil, nil
	}

	r := result.Results[0]
	if strings.TrimSpace(r.Make) == "" || strings.TrimSpace(r.Model) == "" {
		c.logger.Debug("VIN not found in registry",
			zap.String("vin", vin),
			zap.String("error_code", r.ErrorCode))
		return nil, nil
	}

	year, _ := strconv.Atoi(strings.TrimSpace(r.ModelYear))
	return &models.DecodedVehicle{
		VIN:      vin,
		Make:     displayName(r.Make),
		Model:    strings.TrimSpace(r.Model),
		Year:     year,
		BodyType: strings.TrimSpace(r.BodyClass),
	}, nil
}

func (c *Client) store(ctx context.Context, key string, decoded *models.DecodedVehicle) {
	if c.cache == nil {
		return
	}
	value := notFoundMarker
	if decoded != nil {
		data, err := json.Marshal(decoded)
		if err != nil {
			return
		}
		value = string(data)
	}
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("VIN cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func decodeCached(value string) (*models.DecodedVehicle, error) {
	if value == notFoundMarker {
		return nil, nil
	}
	var d models.DecodedVehicle
	if err := json.Unmarshal([]byte(value), &d); err != nil {
		return nil, fmt.Errorf("decode cached vin: %w", err)
	}
	return &d, nil
}

// displayName vPIC 返回全大写品牌名，转换为首字母大写
func displayName(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
