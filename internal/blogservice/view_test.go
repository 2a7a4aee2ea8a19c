package blogservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestProjectView(t *testing.T) {
	author := primitive.NewObjectID()
	liker := primitive.NewObjectID()
	commenter := primitive.NewObjectID()
	replier := primitive.NewObjectID()

	blogID := primitive.NewObjectID()
	commentID := primitive.NewObjectID()
	replyID := primitive.NewObjectID()

	tree := &blogTree{
		blog: &Blog{
			ID:       blogID,
			Title:    "First Post",
			Author:   author,
			Category: "tech",
			Tags:     []string{"go"},
			Likes:    []primitive.ObjectID{liker},
			Comments: []primitive.ObjectID{commentID},
		},
		comments: map[primitive.ObjectID]Comment{
			commentID: {
				ID:      commentID,
				Blog:    blogID,
				User:    commenter,
				Content: "hi",
				Likes:   []primitive.ObjectID{liker},
				Replies: []primitive.ObjectID{replyID},
			},
		},
		replies: map[primitive.ObjectID]Reply{
			replyID: {
				ID:      replyID,
				Comment: commentID,
				User:    replier,
				Content: "hello back",
			},
		},
		users: map[primitive.ObjectID]UserRef{
			author:    {ID: author.Hex(), Name: "alice", Picture: "alice.png"},
			liker:     {ID: liker.Hex(), Name: "bob"},
			commenter: {ID: commenter.Hex(), Name: "carol"},
			replier:   {ID: replier.Hex(), Name: "dave"},
		},
	}

	view := projectView(tree)

	assert.Equal(t, blogID.Hex(), view.ID)
	assert.Equal(t, "alice", view.Author.Name)
	assert.Equal(t, "alice.png", view.Author.Picture)

	assert.Len(t, view.Likes, 1)
	assert.Equal(t, "bob", view.Likes[0].Name)

	assert.Len(t, view.Comments, 1)
	comment := view.Comments[0]
	assert.Equal(t, commentID.Hex(), comment.ID)
	assert.Equal(t, "carol", comment.User.Name)
	assert.Equal(t, "hi", comment.Content)
	assert.Len(t, comment.Likes, 1)

	assert.Len(t, comment.Replies, 1)
	assert.Equal(t, "dave", comment.Replies[0].User.Name)
	assert.Equal(t, "hello back", comment.Replies[0].Content)
}

func TestProjectViewSkipsUnknownRefs(t *testing.T) {
	author := primitive.NewObjectID()
	blogID := primitive.NewObjectID()
	missing := primitive.NewObjectID()

	tree := &blogTree{
		blog: &Blog{
			ID:       blogID,
			Title:    "Orphan Refs",
			Author:   author,
			Likes:    []primitive.ObjectID{missing},
			Comments: []primitive.ObjectID{missing},
		},
		comments: map[primitive.ObjectID]Comment{},
		replies:  map[primitive.ObjectID]Reply{},
		users: map[primitive.ObjectID]UserRef{
			author: {ID: author.Hex(), Name: "alice"},
		},
	}

	view := projectView(tree)

	// Dangling references are dropped instead of rendered as zero values.
	assert.Empty(t, view.Likes)
	assert.Empty(t, view.Comments)
	assert.NotNil(t, view.Likes)
	assert.NotNil(t, view.Comments)
}

func TestProjectViewCommentOrder(t *testing.T) {
	author := primitive.NewObjectID()
	blogID := primitive.NewObjectID()
	first := primitive.NewObjectID()
	second := primitive.NewObjectID()

	tree := &blogTree{
		blog: &Blog{
			ID:       blogID,
			Author:   author,
			Comments: []primitive.ObjectID{second, first},
		},
		comments: map[primitive.ObjectID]Comment{
			first:  {ID: first, Content: "first"},
			second: {ID: second, Content: "second"},
		},
		replies: map[primitive.ObjectID]Reply{},
		users:   map[primitive.ObjectID]UserRef{},
	}

	view := projectView(tree)

	// Order follows the reference sequence on the blog, not insertion order.
	assert.Equal(t, "second", view.Comments[0].Content)
	assert.Equal(t, "first", view.Comments[1].Content)
}
