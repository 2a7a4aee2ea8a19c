package blogservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/almuhsiny/blogapi/internal/common"
)

var (
	ErrRecordNotFound = errors.New("record not found")
)

func newBlogModel(db *mongo.Database) *BlogModel {
	return &BlogModel{
		blogs:    db.Collection(common.BlogsCollection),
		comments: db.Collection(common.CommentsCollection),
		replies:  db.Collection(common.RepliesCollection),
		users:    db.Collection(common.UsersCollection),
	}
}

func now() time.Time {
	// Mongo stores DateTime at millisecond precision.
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (m *BlogModel) insertBlog(ctx context.Context, blog *Blog) error {
	ts := now()
	blog.CreatedAt = ts
	blog.UpdatedAt = ts

	if blog.Tags == nil {
		blog.Tags = []string{}
	}
	blog.Likes = []primitive.ObjectID{}
	blog.Comments = []primitive.ObjectID{}

	res, err := m.blogs.InsertOne(ctx, blog)
	if err != nil {
		return err
	}

	blog.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (m *BlogModel) getBlogByID(ctx context.Context, id primitive.ObjectID) (*Blog, error) {
	var blog Blog
	err := m.blogs.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&blog)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &blog, nil
}

func (m *BlogModel) updateBlogByID(ctx context.Context, id primitive.ObjectID, req *UpdateBlogRequest) error {
	set := bson.D{{Key: "updated_at", Value: now()}}
	if req.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *req.Title})
	}
	if req.Category != nil {
		set = append(set, bson.E{Key: "category", Value: *req.Category})
	}
	if req.Tags != nil {
		set = append(set, bson.E{Key: "tags", Value: req.Tags})
	}
	if req.Content != nil {
		set = append(set, bson.E{Key: "content", Value: *req.Content})
	}
	if req.CoverImage != nil {
		set = append(set, bson.E{Key: "cover_image", Value: *req.CoverImage})
	}

	res, err := m.blogs.UpdateByID(ctx, id, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// deleteBlogByID removes the blog and cascades over its comments and their
// replies so no child document is left dangling.
func (m *BlogModel) deleteBlogByID(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.blogs.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}

	if res.DeletedCount == 0 {
		return ErrRecordNotFound
	}

	cursor, err := m.comments.Find(ctx, bson.D{{Key: "blog", Value: id}}, options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}

	var commentIDs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &commentIDs); err != nil {
		return err
	}

	ids := make([]primitive.ObjectID, len(commentIDs))
	for i, c := range commentIDs {
		ids[i] = c.ID
	}

	if len(ids) > 0 {
		if _, err := m.replies.DeleteMany(ctx, bson.D{{Key: "comment", Value: bson.D{{Key: "$in", Value: ids}}}}); err != nil {
			return err
		}
	}

	if _, err := m.comments.DeleteMany(ctx, bson.D{{Key: "blog", Value: id}}); err != nil {
		return err
	}

	return nil
}

// likeBlog adds the user to the likes set. $addToSet keeps the operation
// idempotent, a user cannot like the same blog twice.
func (m *BlogModel) likeBlog(ctx context.Context, blogID, userID primitive.ObjectID) error {
	res, err := m.blogs.UpdateByID(ctx, blogID, bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "likes", Value: userID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now()}}},
	})
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// incViews bumps the view counter without touching updated_at, a read is
// not an edit.
func (m *BlogModel) incViews(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.blogs.UpdateByID(ctx, id, bson.D{
		{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}},
	})
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (m *BlogModel) findBlogs(ctx context.Context, f Filter, s Sort, limit, offset int) ([]Blog, error) {
	opts := options.Find().
		SetSort(s.toMongo()).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := m.blogs.Find(ctx, f.toMongo(), opts)
	if err != nil {
		return nil, err
	}

	var blogs []Blog
	if err := cursor.All(ctx, &blogs); err != nil {
		return nil, err
	}

	return blogs, nil
}

func (m *BlogModel) countBlogs(ctx context.Context, f Filter) (int64, error) {
	return m.blogs.CountDocuments(ctx, f.toMongo())
}

// allBlogIDs returns every blog id in store insertion order. Used when the
// listing cache is rebuilt from scratch.
func (m *BlogModel) allBlogIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 1}})

	cursor, err := m.blogs.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}

	return ids, nil
}

func (m *BlogModel) insertComment(ctx context.Context, comment *Comment) error {
	ts := now()
	comment.CreatedAt = ts
	comment.UpdatedAt = ts
	comment.Likes = []primitive.ObjectID{}
	comment.Replies = []primitive.ObjectID{}

	res, err := m.comments.InsertOne(ctx, comment)
	if err != nil {
		return err
	}

	comment.ID = res.InsertedID.(primitive.ObjectID)

	// Append the reference to the parent. The two writes are not
	// transactional: if this one fails the comment document is already
	// committed and the caller logs the partial cascade.
	_, err = m.blogs.UpdateByID(ctx, comment.Blog, bson.D{
		{Key: "$push", Value: bson.D{{Key: "comments", Value: comment.ID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: ts}}},
	})
	if err != nil {
		return fmt.Errorf("comment %s created but not linked to blog %s: %w", comment.ID.Hex(), comment.Blog.Hex(), err)
	}

	return nil
}

func (m *BlogModel) getCommentByID(ctx context.Context, id primitive.ObjectID) (*Comment, error) {
	var comment Comment
	err := m.comments.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&comment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &comment, nil
}

// deleteComment unlinks the comment from its blog before deleting the
// document and its replies, so the blog never references a missing child.
func (m *BlogModel) deleteComment(ctx context.Context, blogID, commentID primitive.ObjectID) error {
	_, err := m.blogs.UpdateByID(ctx, blogID, bson.D{
		{Key: "$pull", Value: bson.D{{Key: "comments", Value: commentID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now()}}},
	})
	if err != nil {
		return err
	}

	if _, err := m.replies.DeleteMany(ctx, bson.D{{Key: "comment", Value: commentID}}); err != nil {
		return err
	}

	res, err := m.comments.DeleteOne(ctx, bson.D{{Key: "_id", Value: commentID}})
	if err != nil {
		return err
	}

	if res.DeletedCount == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (m *BlogModel) likeComment(ctx context.Context, commentID, userID primitive.ObjectID) error {
	res, err := m.comments.UpdateByID(ctx, commentID, bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "likes", Value: userID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now()}}},
	})
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (m *BlogModel) insertReply(ctx context.Context, reply *Reply) error {
	ts := now()
	reply.CreatedAt = ts
	reply.UpdatedAt = ts
	reply.Likes = []primitive.ObjectID{}

	res, err := m.replies.InsertOne(ctx, reply)
	if err != nil {
		return err
	}

	reply.ID = res.InsertedID.(primitive.ObjectID)

	_, err = m.comments.UpdateByID(ctx, reply.Comment, bson.D{
		{Key: "$push", Value: bson.D{{Key: "replies", Value: reply.ID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: ts}}},
	})
	if err != nil {
		return fmt.Errorf("reply %s created but not linked to comment %s: %w", reply.ID.Hex(), reply.Comment.Hex(), err)
	}

	return nil
}

func (m *BlogModel) getReplyByID(ctx context.Context, id primitive.ObjectID) (*Reply, error) {
	var reply Reply
	err := m.replies.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&reply)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &reply, nil
}

func (m *BlogModel) deleteReply(ctx context.Context, commentID, replyID primitive.ObjectID) error {
	_, err := m.comments.UpdateByID(ctx, commentID, bson.D{
		{Key: "$pull", Value: bson.D{{Key: "replies", Value: replyID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now()}}},
	})
	if err != nil {
		return err
	}

	res, err := m.replies.DeleteOne(ctx, bson.D{{Key: "_id", Value: replyID}})
	if err != nil {
		return err
	}

	if res.DeletedCount == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (m *BlogModel) likeReply(ctx context.Context, replyID, userID primitive.ObjectID) error {
	res, err := m.replies.UpdateByID(ctx, replyID, bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "likes", Value: userID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now()}}},
	})
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// fetchBlogTree reads the blog document and resolves its full transitive
// closure: comments, replies and a {name, picture} projection of every
// referenced user.
func (m *BlogModel) fetchBlogTree(ctx context.Context, id primitive.ObjectID) (*blogTree, error) {
	blog, err := m.getBlogByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tree := &blogTree{
		blog:     blog,
		comments: make(map[primitive.ObjectID]Comment),
		replies:  make(map[primitive.ObjectID]Reply),
		users:    make(map[primitive.ObjectID]UserRef),
	}

	userIDs := map[primitive.ObjectID]struct{}{blog.Author: {}}
	for _, uid := range blog.Likes {
		userIDs[uid] = struct{}{}
	}

	if len(blog.Comments) > 0 {
		cursor, err := m.comments.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: blog.Comments}}}})
		if err != nil {
			return nil, err
		}

		var comments []Comment
		if err := cursor.All(ctx, &comments); err != nil {
			return nil, err
		}

		commentIDs := make([]primitive.ObjectID, 0, len(comments))
		for _, c := range comments {
			tree.comments[c.ID] = c
			commentIDs = append(commentIDs, c.ID)
			userIDs[c.User] = struct{}{}
			for _, uid := range c.Likes {
				userIDs[uid] = struct{}{}
			}
		}

		if len(commentIDs) > 0 {
			cursor, err := m.replies.Find(ctx, bson.D{{Key: "comment", Value: bson.D{{Key: "$in", Value: commentIDs}}}})
			if err != nil {
				return nil, err
			}

			var replies []Reply
			if err := cursor.All(ctx, &replies); err != nil {
				return nil, err
			}

			for _, r := range replies {
				tree.replies[r.ID] = r
				userIDs[r.User] = struct{}{}
				for _, uid := range r.Likes {
					userIDs[uid] = struct{}{}
				}
			}
		}
	}

	ids := make([]primitive.ObjectID, 0, len(userIDs))
	for uid := range userIDs {
		ids = append(ids, uid)
	}

	opts := options.Find().SetProjection(bson.D{{Key: "name", Value: 1}, {Key: "picture", Value: 1}})
	cursor, err := m.users.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, opts)
	if err != nil {
		return nil, err
	}

	var users []struct {
		ID      primitive.ObjectID `bson:"_id"`
		Name    string             `bson:"name"`
		Picture string             `bson:"picture"`
	}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	for _, u := range users {
		tree.users[u.ID] = UserRef{ID: u.ID.Hex(), Name: u.Name, Picture: u.Picture}
	}

	return tree, nil
}
