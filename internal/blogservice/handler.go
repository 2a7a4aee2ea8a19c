package blogservice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/almuhsiny/blogapi/internal/common"
)

var (
	ErrNotPermitted = errors.New("not permitted")
)

type CreateBlogRequest struct {
	Title      string             `json:"title"`
	Category   string             `json:"category"`
	Tags       []string           `json:"tags"`
	CoverImage CoverImage         `json:"cover_image"`
	Content    string             `json:"content"`
	Author     primitive.ObjectID `json:"-"`
}

type UpdateBlogRequest struct {
	Title      *string     `json:"title"`
	Category   *string     `json:"category"`
	Tags       []string    `json:"tags"`
	CoverImage *CoverImage `json:"cover_image"`
	Content    *string     `json:"content"`
}

func (s *BlogService) CreateBlog(ctx context.Context, req *CreateBlogRequest) (*Blog, error) {
	v := common.NewValidator()
	validateTitle(v, req.Title)
	validateCategory(v, req.Category)
	validateTags(v, req.Tags)
	validateContent(v, req.Content)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	blog := &Blog{
		Title:      req.Title,
		Author:     req.Author,
		Category:   req.Category,
		Tags:       req.Tags,
		CoverImage: req.CoverImage,
		Content:    sanitizeMarkdown(req.Content),
	}

	if err := s.m.insertBlog(ctx, blog); err != nil {
		return nil, err
	}

	s.cache.refresh(blog.ID)

	return blog, nil
}

// GetBlogByID serves the denormalized view, from the cache when present and
// otherwise populated synchronously from the store. The view count is bumped
// after the response is assembled.
func (s *BlogService) GetBlogByID(ctx context.Context, id primitive.ObjectID) (*BlogView, error) {
	view, err := s.cache.getView(ctx, id)
	if err == nil {
		s.recordView(id)
		return view, nil
	}

	if !errors.Is(err, common.ErrCacheMiss) {
		s.logger.Error("blog view cache read failed", slog.String("blog_id", id.Hex()), slog.String("error", err.Error()))
	}

	view, err = s.cache.populate(ctx, id)
	if err != nil {
		if view == nil {
			return nil, err
		}
		// The store read succeeded, only the cache write failed.
		s.logger.Error("blog view cache write failed", slog.String("blog_id", id.Hex()), slog.String("error", err.Error()))
	}

	s.recordView(id)

	return view, nil
}

func (s *BlogService) UpdateBlog(ctx context.Context, id primitive.ObjectID, req *UpdateBlogRequest) error {
	v := common.NewValidator()
	if req.Title != nil {
		validateTitle(v, *req.Title)
	}
	if req.Category != nil {
		validateCategory(v, *req.Category)
	}
	if req.Tags != nil {
		validateTags(v, req.Tags)
	}
	if req.Content != nil {
		validateContent(v, *req.Content)
		clean := sanitizeMarkdown(*req.Content)
		req.Content = &clean
	}
	if !v.Valid() {
		return v.ValidationError()
	}

	if err := s.m.updateBlogByID(ctx, id, req); err != nil {
		return err
	}

	s.cache.refresh(id)

	return nil
}

func (s *BlogService) DeleteBlog(ctx context.Context, id primitive.ObjectID) error {
	if err := s.m.deleteBlogByID(ctx, id); err != nil {
		return err
	}

	s.cache.evictAsync(id)

	return nil
}

func (s *BlogService) LikeBlog(ctx context.Context, blogID, userID primitive.ObjectID) error {
	if err := s.m.likeBlog(ctx, blogID, userID); err != nil {
		return err
	}

	s.cache.refresh(blogID)

	return nil
}

// ListBlogs returns one page of blog views plus the total match count.
// When the listing cache holds the collection, filter, sort and pagination
// are applied in memory over it; otherwise the query is pushed down to the
// store and a full listing rebuild is scheduled. Both paths use the same
// predicate semantics and the same tie-break, so the returned page does not
// depend on cache state.
func (s *BlogService) ListBlogs(ctx context.Context, f Filter, st Sort, limit, offset int) ([]BlogView, int64, error) {
	v := common.NewValidator()
	validateSort(v, st)
	validatePage(v, limit, offset)
	if !v.Valid() {
		return nil, 0, v.ValidationError()
	}

	views, err := s.cache.cachedList(ctx)
	if err == nil {
		matched := make([]BlogView, 0, len(views))
		for _, view := range views {
			if f.match(&view) {
				matched = append(matched, view)
			}
		}
		sortViews(matched, st)
		return paginate(matched, limit, offset), int64(len(matched)), nil
	}

	if !errors.Is(err, common.ErrCacheMiss) {
		s.logger.Error("listing cache read failed", slog.String("error", err.Error()))
	}

	total, err := s.m.countBlogs(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	blogs, err := s.m.findBlogs(ctx, f, st, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	page := make([]BlogView, 0, len(blogs))
	for _, blog := range blogs {
		view, err := s.cache.populate(ctx, blog.ID)
		if err != nil {
			if view == nil {
				if errors.Is(err, ErrRecordNotFound) {
					// Deleted between the find and the fetch.
					continue
				}
				return nil, 0, err
			}
			s.logger.Error("blog view cache write failed", slog.String("blog_id", blog.ID.Hex()), slog.String("error", err.Error()))
		}
		page = append(page, *view)
	}

	s.cache.rebuildAsync()

	return page, total, nil
}

func (s *BlogService) CreateComment(ctx context.Context, blogID, userID primitive.ObjectID, content string) (*Comment, error) {
	v := common.NewValidator()
	validateCommentContent(v, content)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	// Confirm the parent exists before any write so a bad id cannot leave
	// an orphan comment behind.
	if _, err := s.m.getBlogByID(ctx, blogID); err != nil {
		return nil, err
	}

	comment := &Comment{
		Blog:    blogID,
		User:    userID,
		Content: content,
	}

	if err := s.m.insertComment(ctx, comment); err != nil {
		return nil, err
	}

	s.cache.refresh(blogID)

	return comment, nil
}

func (s *BlogService) GetCommentByID(ctx context.Context, id primitive.ObjectID) (*Comment, error) {
	return s.m.getCommentByID(ctx, id)
}

func (s *BlogService) DeleteComment(ctx context.Context, blogID, commentID, userID primitive.ObjectID, isAdmin bool) error {
	comment, err := s.m.getCommentByID(ctx, commentID)
	if err != nil {
		return err
	}

	if comment.Blog != blogID {
		return ErrRecordNotFound
	}

	if comment.User != userID && !isAdmin {
		return ErrNotPermitted
	}

	if err := s.m.deleteComment(ctx, blogID, commentID); err != nil {
		return err
	}

	s.cache.refresh(blogID)

	return nil
}

func (s *BlogService) LikeComment(ctx context.Context, commentID, userID primitive.ObjectID) error {
	comment, err := s.m.getCommentByID(ctx, commentID)
	if err != nil {
		return err
	}

	if err := s.m.likeComment(ctx, commentID, userID); err != nil {
		return err
	}

	s.cache.refresh(comment.Blog)

	return nil
}

func (s *BlogService) CreateReply(ctx context.Context, commentID, userID primitive.ObjectID, content string) (*Reply, error) {
	v := common.NewValidator()
	validateCommentContent(v, content)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	comment, err := s.m.getCommentByID(ctx, commentID)
	if err != nil {
		return nil, err
	}

	reply := &Reply{
		Comment: commentID,
		User:    userID,
		Content: content,
	}

	if err := s.m.insertReply(ctx, reply); err != nil {
		return nil, err
	}

	s.cache.refresh(comment.Blog)

	return reply, nil
}

func (s *BlogService) DeleteReply(ctx context.Context, commentID, replyID, userID primitive.ObjectID, isAdmin bool) error {
	reply, err := s.m.getReplyByID(ctx, replyID)
	if err != nil {
		return err
	}

	if reply.Comment != commentID {
		return ErrRecordNotFound
	}

	if reply.User != userID && !isAdmin {
		return ErrNotPermitted
	}

	comment, err := s.m.getCommentByID(ctx, commentID)
	if err != nil {
		return err
	}

	if err := s.m.deleteReply(ctx, commentID, replyID); err != nil {
		return err
	}

	s.cache.refresh(comment.Blog)

	return nil
}

func (s *BlogService) LikeReply(ctx context.Context, replyID, userID primitive.ObjectID) error {
	reply, err := s.m.getReplyByID(ctx, replyID)
	if err != nil {
		return err
	}

	comment, err := s.m.getCommentByID(ctx, reply.Comment)
	if err != nil {
		return err
	}

	if err := s.m.likeReply(ctx, replyID, userID); err != nil {
		return err
	}

	s.cache.refresh(comment.Blog)

	return nil
}

// recordView bumps the store-side view counter and refreshes the cached
// view, off the request path.
func (s *BlogService) recordView(id primitive.ObjectID) {
	s.cache.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.m.incViews(ctx, id); err != nil {
			if !errors.Is(err, ErrRecordNotFound) {
				s.logger.Error("view count update failed", slog.String("blog_id", id.Hex()), slog.String("error", err.Error()))
			}
			return
		}

		if _, err := s.cache.populate(ctx, id); err != nil && !errors.Is(err, ErrRecordNotFound) {
			s.logger.Error("blog view refresh failed", slog.String("blog_id", id.Hex()), slog.String("error", err.Error()))
		}
	})
}
