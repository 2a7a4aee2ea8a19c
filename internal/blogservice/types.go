package blogservice

import (
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/almuhsiny/blogapi/internal/common"
)

type BlogService struct {
	m      *BlogModel
	cache  *ViewCache
	logger *slog.Logger
}

type BlogModel struct {
	blogs    *mongo.Collection
	comments *mongo.Collection
	replies  *mongo.Collection
	users    *mongo.Collection
}

type CoverImage struct {
	URL      string `bson:"url" json:"url"`
	PublicID string `bson:"public_id" json:"public_id"`
}

type Blog struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title      string               `bson:"title" json:"title"`
	Author     primitive.ObjectID   `bson:"author" json:"author"`
	Category   string               `bson:"category" json:"category"`
	Tags       []string             `bson:"tags" json:"tags"`
	CoverImage CoverImage           `bson:"cover_image" json:"cover_image"`
	Content    string               `bson:"content" json:"content"`
	Views      int64                `bson:"views" json:"views"`
	Likes      []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments   []primitive.ObjectID `bson:"comments" json:"comments"`
	CreatedAt  time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time            `bson:"updated_at" json:"updated_at"`
}

type Comment struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Blog      primitive.ObjectID   `bson:"blog" json:"blog"`
	User      primitive.ObjectID   `bson:"user" json:"user"`
	Content   string               `bson:"content" json:"content"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	Replies   []primitive.ObjectID `bson:"replies" json:"replies"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}

// Reply keeps an explicit back-reference to its comment so reply routes can
// resolve the owning blog and comment deletion can cascade.
type Reply struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Comment   primitive.ObjectID   `bson:"comment" json:"comment"`
	User      primitive.ObjectID   `bson:"user" json:"user"`
	Content   string               `bson:"content" json:"content"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}

func NewBlogService(db *mongo.Database, cache common.Cache, logger *slog.Logger) *BlogService {
	m := newBlogModel(db)

	return &BlogService{
		m:      m,
		cache:  newViewCache(cache, m, logger),
		logger: logger,
	}
}

// Wait blocks until every scheduled cache task has finished. Used on
// shutdown and by tests.
func (s *BlogService) Wait() {
	s.cache.wait()
}
