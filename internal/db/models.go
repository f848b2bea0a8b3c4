package db

import (
	"encoding/json"
	"time"
)

// RawArticle maps news.raw_articles.
type RawArticle struct {
	RawArticleID int64           `gorm:"column:raw_article_id;primaryKey;autoIncrement"`
	APISource    string          `gorm:"column:api_source;type:text;not null"`
	SourceName   *string         `gorm:"column:source_name;type:text"`
	Title        string          `gorm:"column:title;type:text;not null"`
	Description  *string         `gorm:"column:description;type:text"`
	Content      *string         `gorm:"column:content;type:text"`
	URL          *string         `gorm:"column:url;type:text"`
	ImageURL     *string         `gorm:"column:image_url;type:text"`
	Language     string          `gorm:"column:language;type:text;not null;default:''"`
	PublishedAt  *time.Time      `gorm:"column:published_at;type:timestamptz"`
	FetchedAt    time.Time       `gorm:"column:fetched_at;type:timestamptz;not null;default:now()"`
	RawPayload   json.RawMessage `gorm:"column:raw_payload;type:jsonb"`
	Processed    bool            `gorm:"column:processed;type:boolean;not null;default:false"`
	ProcessedAt  *time.Time      `gorm:"column:processed_at;type:timestamptz"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (RawArticle) TableName() string { return "news.raw_articles" }

// Category maps news.categories.
type Category struct {
	CategoryID int64     `gorm:"column:category_id;primaryKey;autoIncrement"`
	Name       string    `gorm:"column:name;type:text;not null;unique"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Category) TableName() string { return "news.categories" }

// Source maps news.sources.
type Source struct {
	SourceID  int64     `gorm:"column:source_id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:text;not null;unique"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Source) TableName() string { return "news.sources" }

// Article maps news.articles, the canonical synthesized articles.
type Article struct {
	ArticleID          int64      `gorm:"column:article_id;primaryKey;autoIncrement"`
	Title              string     `gorm:"column:title;type:text;not null"`
	Summary            string     `gorm:"column:summary;type:text;not null;default:''"`
	Content            string     `gorm:"column:content;type:text;not null;default:''"`
	URL                *string    `gorm:"column:url;type:text"`
	ImageURL           *string    `gorm:"column:image_url;type:text"`
	PublishedAt        *time.Time `gorm:"column:published_at;type:timestamptz"`
	OriginRawArticleID *int64     `gorm:"column:origin_raw_article_id;type:bigint"`
	SynthesisRunUUID   *string    `gorm:"column:synthesis_run_uuid;type:uuid"`
	CreatedAt          time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "news.articles" }

// ArticleCategory maps news.article_categories.
type ArticleCategory struct {
	ArticleID  int64 `gorm:"column:article_id;primaryKey"`
	CategoryID int64 `gorm:"column:category_id;primaryKey"`
}

func (ArticleCategory) TableName() string { return "news.article_categories" }

// ArticleSource maps news.article_sources.
type ArticleSource struct {
	ArticleID int64 `gorm:"column:article_id;primaryKey"`
	SourceID  int64 `gorm:"column:source_id;primaryKey"`
}

func (ArticleSource) TableName() string { return "news.article_sources" }

// SynthesisRun maps news.synthesis_runs.
type SynthesisRun struct {
	RunID            int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID          string     `gorm:"column:run_uuid;type:uuid;not null;unique"`
	Trigger          string     `gorm:"column:trigger_source;type:text;not null"`
	Status           string     `gorm:"column:status;type:text;not null;default:running"`
	FetchedCount     int        `gorm:"column:fetched_count;type:integer;not null;default:0"`
	EdgeCount        int        `gorm:"column:edge_count;type:integer;not null;default:0"`
	ClusterCount     int        `gorm:"column:cluster_count;type:integer;not null;default:0"`
	SynthesizedCount int        `gorm:"column:synthesized_count;type:integer;not null;default:0"`
	PersistedCount   int        `gorm:"column:persisted_count;type:integer;not null;default:0"`
	MarkedCount      int64      `gorm:"column:marked_count;type:bigint;not null;default:0"`
	SynthesisFailed  bool       `gorm:"column:synthesis_failed;type:boolean;not null;default:false"`
	ErrorMessage     *string    `gorm:"column:error_message;type:text"`
	StartedAt        time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt       *time.Time `gorm:"column:finished_at;type:timestamptz"`
}

func (SynthesisRun) TableName() string { return "news.synthesis_runs" }

func autoMigrateModels() []any {
	return []any{
		&RawArticle{},
		&Category{},
		&Source{},
		&Article{},
		&ArticleCategory{},
		&ArticleSource{},
		&SynthesisRun{},
	}
}
