package seed

import (
	"log"

	"quorum/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Run populates the database with a demo forum: users, tags,
// questions with answer threads, votes, and nested reply chains.
func Run(db *gorm.DB, opts Options) error {
	if opts.Users <= 0 {
		opts.Users = 20
	}
	if opts.Questions <= 0 {
		opts.Questions = 40
	}

	f := NewFactory(db, opts)

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		user, err := f.CreateUser()
		if err != nil {
			return err
		}
		users = append(users, user)
	}

	tags := make([]models.Tag, 0, 10)
	for i := 0; i < 10; i++ {
		tag, err := f.CreateTag()
		if err != nil {
			return err
		}
		tags = append(tags, *tag)
	}

	pick := func() *models.User {
		return users[gofakeit.Number(0, len(users)-1)]
	}

	for i := 0; i < opts.Questions; i++ {
		start := gofakeit.Number(0, len(tags)-3)
		qTags := tags[start : start+gofakeit.Number(1, 3)]
		question, err := f.CreateQuestion(pick(), qTags)
		if err != nil {
			return err
		}

		answerCount := gofakeit.Number(0, 5)
		for j := 0; j < answerCount; j++ {
			answer, err := f.CreateAnswer(pick(), question)
			if err != nil {
				return err
			}

			// Votes, one per distinct user.
			for _, voter := range users[:gofakeit.Number(0, len(users)/2)] {
				if voter.ID == answer.OwnerID {
					continue
				}
				if _, err := f.CreateVote(voter, answer, gofakeit.Bool()); err != nil {
					return err
				}
			}

			if gofakeit.Bool() {
				comment, err := f.CreateComment(pick(), answer)
				if err != nil {
					return err
				}
				var parent *models.Reply
				depth := gofakeit.Number(0, 3)
				for d := 0; d < depth; d++ {
					reply, err := f.CreateReply(pick(), comment, parent)
					if err != nil {
						return err
					}
					parent = reply
				}
			}
		}

		// Accept one answer on roughly a third of the questions.
		if answerCount > 0 && gofakeit.Number(0, 2) == 0 {
			var first models.Answer
			if err := db.Where("question_id = ?", question.ID).First(&first).Error; err == nil {
				if err := db.Model(&first).Update("accepted", true).Error; err != nil {
					return err
				}
				if err := db.Model(&models.User{}).Where("id = ?", first.OwnerID).
					Update("score", gorm.Expr("score + ?", 1)).Error; err != nil {
					return err
				}
			}
		}
	}

	log.Printf("seeded %d users, %d tags, %d questions", len(users), len(tags), opts.Questions)
	return nil
}
