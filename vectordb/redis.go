package vectordb

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/schema"
)

const deleteScanLimit = 1000

type redisBackend struct {
	client    rueidis.Client
	index     string
	keyPrefix string
	logger    *zap.Logger
}

func newRedisBackend(ctx context.Context, cfg *config.VectorDBConfig, dimensions int, logger *zap.Logger) (*redisBackend, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 && cfg.Address != "" {
		addrs = []string{cfg.Address}
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	b := &redisBackend{
		client:    client,
		index:     cfg.Collection + "_idx",
		keyPrefix: cfg.Collection + ":",
		logger:    logger,
	}
	if err := b.ensureIndex(ctx, dimensions); err != nil {
		client.Close()
		return nil, err
	}
	return b, nil
}

func (b *redisBackend) Name() string { return "redis" }

func (b *redisBackend) ensureIndex(ctx context.Context, dimensions int) error {
	cmd := b.client.B().Arbitrary("FT.CREATE").Args(
		b.index, "ON", "HASH",
		"PREFIX", "1", b.keyPrefix,
		"SCHEMA",
		"ns", "TAG",
		"source_id", "TAG",
		"category", "TAG",
		"content", "TEXT",
		"chunk_index", "NUMERIC",
		"vector", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dimensions),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(hnswM),
		"EF_CONSTRUCTION", strconv.Itoa(hnswEfConstruct),
	).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		if re, ok := rueidis.IsRedisErr(err); ok && strings.Contains(strings.ToLower(re.Error()), "index already exists") {
			return nil
		}
		return fmt.Errorf("create index %s: %w", b.index, err)
	}
	return nil
}

func (b *redisBackend) Upsert(ctx context.Context, namespace string, docs []schema.Document) error {
	cmds := make(rueidis.Commands, 0, len(docs))
	for _, d := range docs {
		cmds = append(cmds, b.client.B().Hset().Key(b.keyPrefix+d.ID).
			FieldValue().
			FieldValue("ns", namespace).
			FieldValue("source_id", d.SourceID).
			FieldValue("chunk_index", strconv.Itoa(d.ChunkIndex)).
			FieldValue("content", d.Content).
			FieldValue("title", d.Title).
			FieldValue("category", d.Category).
			FieldValue("created_at", strconv.FormatInt(d.CreatedAt.Unix(), 10)).
			FieldValue("vector", vectorToBytes(d.Vector)).
			Build())
	}
	for _, resp := range b.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("upsert into %s: %w", namespace, err)
		}
	}
	return nil
}

func (b *redisBackend) Search(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]string) ([]schema.SearchResult, error) {
	query := fmt.Sprintf("(%s)=>[KNN %d @vector $BLOB]", b.buildFilter(namespace, filter), topK)
	cmd := b.client.B().Arbitrary("FT.SEARCH").Args(
		b.index, query,
		"RETURN", "7", "__vector_score", "source_id", "chunk_index", "content", "title", "category", "ns",
		"SORTBY", "__vector_score",
		"LIMIT", "0", strconv.Itoa(topK),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	).Build()
	raw, err := b.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", b.index, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var out []schema.SearchResult
	// RESP2 layout is 2-stride: [total, key1, fields1, key2, fields2, ...].
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldMsgs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := make(map[string]string, len(fieldMsgs)/2)
		for j := 0; j+1 < len(fieldMsgs); j += 2 {
			name, nerr := fieldMsgs[j].ToString()
			value, verr := fieldMsgs[j+1].ToString()
			if nerr == nil && verr == nil {
				fields[name] = value
			}
		}
		chunkIndex, _ := strconv.Atoi(fields["chunk_index"])
		score := 0.0
		if dist, err := strconv.ParseFloat(fields["__vector_score"], 64); err == nil {
			// Cosine distance to similarity, clamped at zero.
			score = math.Max(0, 1.0-dist)
		}
		out = append(out, schema.SearchResult{
			Document: schema.Document{
				ID:         strings.TrimPrefix(key, b.keyPrefix),
				SourceID:   fields["source_id"],
				ChunkIndex: chunkIndex,
				Content:    fields["content"],
				Title:      fields["title"],
				Category:   fields["category"],
			},
			Score: score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (b *redisBackend) DeleteBySource(ctx context.Context, namespace string, sourceID string) error {
	query := fmt.Sprintf("@ns:{%s} @source_id:{%s}", escapeTag(namespace), escapeTag(sourceID))
	cmd := b.client.B().Arbitrary("FT.SEARCH").Args(
		b.index, query,
		"NOCONTENT",
		"LIMIT", "0", strconv.Itoa(deleteScanLimit),
		"DIALECT", "2",
	).Build()
	raw, err := b.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return fmt.Errorf("find keys for %s: %w", sourceID, err)
	}
	if len(raw) <= 1 {
		return nil
	}
	keys := make([]string, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		if key, err := msg.ToString(); err == nil {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Do(ctx, b.client.B().Del().Key(keys...).Build()).Error(); err != nil {
		return fmt.Errorf("delete %d keys for %s: %w", len(keys), sourceID, err)
	}
	return nil
}

func (b *redisBackend) Close() error {
	b.client.Close()
	return nil
}

func (b *redisBackend) buildFilter(namespace string, filter map[string]string) string {
	terms := []string{fmt.Sprintf("@ns:{%s}", escapeTag(namespace))}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		terms = append(terms, fmt.Sprintf("@%s:{%s}", k, escapeTag(filter[k])))
	}
	return strings.Join(terms, " ")
}

var tagEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>",
	"{", "\\{", "}", "\\}", "\"", "\\\"", "'", "\\'",
	":", "\\:", ";", "\\;", "!", "\\!", "@", "\\@",
	"#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^",
	"&", "\\&", "*", "\\*", "(", "\\(", ")", "\\)",
	"-", "\\-", "+", "\\+", "=", "\\=", "~", "\\~",
	" ", "\\ ",
)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
