// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"quorum/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options controls how much demo data gets generated.
type Options struct {
	Users     int
	Questions int
	// MaxDays spreads created_at timestamps over this many days back.
	MaxDays int
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rnd  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	return &Factory{
		db:   db,
		opts: opts,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (f *Factory) pastTime() time.Time {
	daysBack := f.rnd.Intn(f.opts.MaxDays)
	hoursBack := f.rnd.Intn(24)
	minsBack := f.rnd.Intn(60)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("DemoPassword12!"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
		Password: string(hashed),
		Bio:      gofakeit.Sentence(10),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		IsActive: true,
	}
	user.CreatedAt = f.pastTime()

	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateTag constructs and persists a tag with a unique name.
func (f *Factory) CreateTag(overrides ...func(*models.Tag)) (*models.Tag, error) {
	name := fmt.Sprintf("%s-%d", gofakeit.HackerNoun(), gofakeit.Number(10, 999))
	tag := &models.Tag{
		Name: name,
		Slug: models.Slugify(name),
	}
	for _, override := range overrides {
		override(tag)
	}
	if err := f.db.Create(tag).Error; err != nil {
		return nil, err
	}
	return tag, nil
}

// CreateQuestion constructs and persists a question owned by user.
func (f *Factory) CreateQuestion(user *models.User, tags []models.Tag, overrides ...func(*models.Question)) (*models.Question, error) {
	title := gofakeit.Question()
	question := &models.Question{
		OwnerID: user.ID,
		Title:   title,
		Body:    gofakeit.Paragraph(2, 4, 8, "\n"),
		// Generated titles repeat; suffix the slug to keep it unique.
		Slug: fmt.Sprintf("%s-%d", models.Slugify(title), gofakeit.Number(100, 99999)),
		Tags: tags,
	}
	question.CreatedAt = f.pastTime()

	for _, override := range overrides {
		override(question)
	}
	if err := f.db.Create(question).Error; err != nil {
		return nil, err
	}
	return question, nil
}

// CreateAnswer constructs and persists an answer on a question.
func (f *Factory) CreateAnswer(user *models.User, question *models.Question, overrides ...func(*models.Answer)) (*models.Answer, error) {
	answer := &models.Answer{
		OwnerID:    user.ID,
		QuestionID: question.ID,
		Body:       gofakeit.Paragraph(1, 3, 8, "\n"),
	}
	answer.CreatedAt = f.pastTime()

	for _, override := range overrides {
		override(answer)
	}
	if err := f.db.Create(answer).Error; err != nil {
		return nil, err
	}
	return answer, nil
}

// CreateVote records a like or dislike from user on answer. Violating
// the one-vote-per-user constraint returns the database error.
func (f *Factory) CreateVote(user *models.User, answer *models.Answer, isLike bool) (*models.Vote, error) {
	vote := &models.Vote{
		OwnerID:   user.ID,
		AnswerID:  answer.ID,
		IsLike:    isLike,
		IsDislike: !isLike,
	}
	if err := f.db.Create(vote).Error; err != nil {
		return nil, err
	}
	return vote, nil
}

// CreateComment constructs and persists a comment on an answer.
func (f *Factory) CreateComment(user *models.User, answer *models.Answer, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		OwnerID:  user.ID,
		AnswerID: answer.ID,
		Body:     gofakeit.Sentence(12),
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateReply constructs and persists a reply under a comment,
// optionally nested under parent.
func (f *Factory) CreateReply(user *models.User, comment *models.Comment, parent *models.Reply, overrides ...func(*models.Reply)) (*models.Reply, error) {
	reply := &models.Reply{
		OwnerID:   user.ID,
		CommentID: comment.ID,
		Body:      gofakeit.Sentence(10),
	}
	if parent != nil {
		reply.ParentID = &parent.ID
	}
	for _, override := range overrides {
		override(reply)
	}
	if err := f.db.Create(reply).Error; err != nil {
		return nil, err
	}
	return reply, nil
}
