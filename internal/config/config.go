package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	ModeStatic  = "static"
	ModeDynamic = "dynamic"

	ThumbnailsNone   = "none"
	ThumbnailsJPEG   = "jpeg"
	ThumbnailsImages = "images"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Addr       string `yaml:"addr"`
	Mode       string `yaml:"mode"`
	BoardTitle string `yaml:"board_title"`

	MultiBoard   bool   `yaml:"multi_board"`
	BoardCount   int    `yaml:"board_count"`
	DefaultBoard string `yaml:"default_board"`

	ThreadsPerPage int `yaml:"threads_per_page"`
	MessageMaxLen  int `yaml:"message_max_len"`
	SubjectMaxLen  int `yaml:"subject_max_len"` // 39 on the single-board layout, 100 with names
	NameMaxLen     int `yaml:"name_max_len"`
	PreviewMaxLen  int `yaml:"preview_max_len"`

	MaxFileSize       int64    `yaml:"max_file_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	ReplyUploads      bool     `yaml:"reply_uploads"`
	Thumbnails        string   `yaml:"thumbnails"`
	ThumbMaxSize      int      `yaml:"thumb_max_size"`
	ThumbQuality      int      `yaml:"thumb_quality"`
	ThumbnailWidth    int      `yaml:"thumbnail_width"`
	ThumbnailHeight   int      `yaml:"thumbnail_height"`
	FullsizeWidth     int      `yaml:"fullsize_width"`
	FullsizeHeight    int      `yaml:"fullsize_height"`

	PostCooldown  time.Duration `yaml:"post_cooldown"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	MaxSessions   int           `yaml:"max_sessions"`
	CSRFEnabled   *bool         `yaml:"csrf_enabled"`
	SecureCookies bool          `yaml:"secure_cookies"`

	// MediaGCInterval of 0 disables the orphaned media collector.
	MediaGCInterval time.Duration `yaml:"media_gc_interval"`
	MediaGCGrace    time.Duration `yaml:"media_gc_grace"`

	PublicRoot string `yaml:"public_root"`
	ErrorLog   string `yaml:"error_log"`
	LogLevel   string `yaml:"log_level"`
	LogJSON    bool   `yaml:"log_json"`
}

type Private struct {
	DB DB `yaml:"db"`
}

type DB struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER"`
	DSN      string `yaml:"dsn" env:"DB_DSN"`
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Dbname   string `yaml:"dbname" env:"DB_NAME"`
}

// Default returns the configuration of the multi-board static layout.
func Default() Public {
	return Public{
		Addr:              ":8080",
		Mode:              ModeStatic,
		BoardTitle:        "Modern Chess Board",
		MultiBoard:        true,
		BoardCount:        100,
		DefaultBoard:      "1",
		ThreadsPerPage:    5,
		MessageMaxLen:     20000,
		SubjectMaxLen:     100,
		NameMaxLen:        35,
		PreviewMaxLen:     900,
		MaxFileSize:       2 << 20,
		AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "webp", "mp4"},
		Thumbnails:        ThumbnailsJPEG,
		ThumbMaxSize:      255,
		ThumbQuality:      85,
		ThumbnailWidth:    75,
		ThumbnailHeight:   75,
		FullsizeWidth:     250,
		FullsizeHeight:    250,
		PostCooldown:      10 * time.Second,
		SessionTTL:        24 * time.Hour,
		MaxSessions:       100000,
		MediaGCInterval:   time.Hour,
		MediaGCGrace:      time.Hour,
		PublicRoot:        "public",
		ErrorLog:          "error.txt",
		LogLevel:          "info",
	}
}

// CSRF reports whether form tokens are enforced. Static pages are shared by all
// visitors and cannot carry a per-session token, so it is off there unless set.
func (p *Public) CSRF() bool {
	if p.CSRFEnabled != nil {
		return *p.CSRFEnabled
	}
	return p.Mode == ModeDynamic
}

func (p *Public) Static() bool {
	return p.Mode == ModeStatic
}

// Boards lists every configured board id.
func (p *Public) Boards() []string {
	if !p.MultiBoard {
		return []string{p.DefaultBoard}
	}
	boards := make([]string, 0, p.BoardCount)
	for i := 1; i <= p.BoardCount; i++ {
		boards = append(boards, strconv.Itoa(i))
	}
	return boards
}

func (p *Public) HasBoard(board string) bool {
	if !p.MultiBoard {
		return board == p.DefaultBoard
	}
	n, err := strconv.Atoi(board)
	if err != nil || strconv.Itoa(n) != board {
		return false
	}
	return n >= 1 && n <= p.BoardCount
}

func (p *Public) validate() error {
	if p.Mode != ModeStatic && p.Mode != ModeDynamic {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeStatic, ModeDynamic, p.Mode)
	}
	if p.ThreadsPerPage < 1 {
		return fmt.Errorf("threads_per_page must be positive")
	}
	if p.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	if p.MultiBoard && p.BoardCount < 1 {
		return fmt.Errorf("board_count must be positive")
	}
	switch p.Thumbnails {
	case ThumbnailsNone, ThumbnailsJPEG, ThumbnailsImages:
	default:
		return fmt.Errorf("thumbnails must be one of none, jpeg, images, got %q", p.Thumbnails)
	}
	if p.MessageMaxLen < 1 || p.SubjectMaxLen < 1 {
		return fmt.Errorf("message_max_len and subject_max_len must be positive")
	}
	return nil
}

// DataSourceName builds the driver specific DSN unless one is configured verbatim.
func (d *DB) DataSourceName() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			d.Host, d.Port, d.User, d.Password, d.Dbname)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4", d.User, d.Password, d.Host, d.Port, d.Dbname)
	default:
		return d.Dbname
	}
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file: " + err.Error())
	}
}

func MustLoad(configFolder string) *Config {
	public := Default()
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)
	if err := public.validate(); err != nil {
		panic("invalid public config: " + err.Error())
	}

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	// .env is optional, real environment wins over it
	_ = godotenv.Load(path.Join(configFolder, ".env"))
	if err := env.Parse(&private.DB); err != nil {
		panic("can't parse db environment: " + err.Error())
	}
	if private.DB.Driver == "" {
		private.DB.Driver = "sqlite"
	}

	return &Config{Public: public, Private: private}
}
