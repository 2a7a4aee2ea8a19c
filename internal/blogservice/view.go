package blogservice

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRef is the projection of a user embedded in a denormalized view.
type UserRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

type ReplyView struct {
	ID        string    `json:"id"`
	User      UserRef   `json:"user"`
	Content   string    `json:"content"`
	Likes     []UserRef `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CommentView struct {
	ID        string      `json:"id"`
	User      UserRef     `json:"user"`
	Content   string      `json:"content"`
	Likes     []UserRef   `json:"likes"`
	Replies   []ReplyView `json:"replies"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// BlogView is the denormalized snapshot of a blog with its full comment and
// reply subtree resolved inline. It is a read model, never written back to
// the document store.
type BlogView struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Author     UserRef       `json:"author"`
	Category   string        `json:"category"`
	Tags       []string      `json:"tags"`
	CoverImage CoverImage    `json:"cover_image"`
	Content    string        `json:"content"`
	Views      int64         `json:"views"`
	Likes      []UserRef     `json:"likes"`
	Comments   []CommentView `json:"comments"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// blogTree is the raw material a view is projected from: the blog document
// plus every resolved child, keyed by id.
type blogTree struct {
	blog     *Blog
	comments map[primitive.ObjectID]Comment
	replies  map[primitive.ObjectID]Reply
	users    map[primitive.ObjectID]UserRef
}

// projectView builds the denormalized view from a fetched tree. Child order
// follows the reference sequences stored on the parent documents. A
// reference to a concurrently deleted comment or reply is skipped; a
// reference to a deleted user renders as a zero-valued UserRef so the
// content it is attached to survives.
func projectView(t *blogTree) *BlogView {
	view := &BlogView{
		ID:         t.blog.ID.Hex(),
		Title:      t.blog.Title,
		Author:     t.users[t.blog.Author],
		Category:   t.blog.Category,
		Tags:       t.blog.Tags,
		CoverImage: t.blog.CoverImage,
		Content:    t.blog.Content,
		Views:      t.blog.Views,
		Likes:      projectLikes(t.blog.Likes, t.users),
		Comments:   []CommentView{},
		CreatedAt:  t.blog.CreatedAt,
		UpdatedAt:  t.blog.UpdatedAt,
	}

	for _, commentID := range t.blog.Comments {
		comment, ok := t.comments[commentID]
		if !ok {
			continue
		}

		cv := CommentView{
			ID:        comment.ID.Hex(),
			User:      t.users[comment.User],
			Content:   comment.Content,
			Likes:     projectLikes(comment.Likes, t.users),
			Replies:   []ReplyView{},
			CreatedAt: comment.CreatedAt,
			UpdatedAt: comment.UpdatedAt,
		}

		for _, replyID := range comment.Replies {
			reply, ok := t.replies[replyID]
			if !ok {
				continue
			}

			cv.Replies = append(cv.Replies, ReplyView{
				ID:        reply.ID.Hex(),
				User:      t.users[reply.User],
				Content:   reply.Content,
				Likes:     projectLikes(reply.Likes, t.users),
				CreatedAt: reply.CreatedAt,
				UpdatedAt: reply.UpdatedAt,
			})
		}

		view.Comments = append(view.Comments, cv)
	}

	return view
}

func projectLikes(ids []primitive.ObjectID, users map[primitive.ObjectID]UserRef) []UserRef {
	likes := []UserRef{}
	for _, id := range ids {
		if ref, ok := users[id]; ok {
			likes = append(likes, ref)
		}
	}

	return likes
}
