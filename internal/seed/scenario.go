package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"circles/internal/models"
	"circles/internal/validation"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed scenarios/demo.yaml
var demoScenario []byte

// Scenario is a hand-written data set loaded from YAML. Users are referred
// to by username everywhere else in the file.
type Scenario struct {
	Users    []ScenarioUser    `yaml:"users"`
	Follows  []ScenarioEdge    `yaml:"follows"`
	Requests []ScenarioRequest `yaml:"requests"`
	Posts    []ScenarioPost    `yaml:"posts"`
}

type ScenarioUser struct {
	Username  string `yaml:"username"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Bio       string `yaml:"bio"`
	Avatar    string `yaml:"avatar"`
	// GoogleID makes the user federated; otherwise it gets DefaultPassword.
	GoogleID string `yaml:"google_id"`
}

type ScenarioEdge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type ScenarioRequest struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Status string `yaml:"status"`
}

type ScenarioPost struct {
	Author     string            `yaml:"author"`
	Content    string            `yaml:"content"`
	ImageURL   string            `yaml:"image_url"`
	Visibility string            `yaml:"visibility"`
	LikedBy    []string          `yaml:"liked_by"`
	Comments   []ScenarioComment `yaml:"comments"`
}

type ScenarioComment struct {
	Author string `yaml:"author"`
	Text   string `yaml:"text"`
}

// ParseScenario decodes and validates a scenario. Unknown keys are errors.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenario reads a scenario file from disk.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// DemoScenario returns the built-in demo data set.
func DemoScenario() (*Scenario, error) {
	return ParseScenario(demoScenario)
}

// Validate checks field rules and that every reference names a user.
func (sc *Scenario) Validate() error {
	var errs []error
	known := make(map[string]bool, len(sc.Users))
	googleIDs := make(map[string]bool)
	for i, u := range sc.Users {
		if err := validation.ValidateUsername(u.Username); err != nil {
			errs = append(errs, fmt.Errorf("users[%d]: %w", i, err))
		}
		if known[u.Username] {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username))
		}
		known[u.Username] = true
		if u.GoogleID != "" {
			if googleIDs[u.GoogleID] {
				errs = append(errs, fmt.Errorf("users[%d]: duplicate google_id %q", i, u.GoogleID))
			}
			googleIDs[u.GoogleID] = true
		}
		if err := validation.ValidateBio(u.Bio); err != nil {
			errs = append(errs, fmt.Errorf("users[%d]: %w", i, err))
		}
	}

	ref := func(where, name string) {
		if !known[name] {
			errs = append(errs, fmt.Errorf("%s: unknown user %q", where, name))
		}
	}
	for i, e := range sc.Follows {
		where := fmt.Sprintf("follows[%d]", i)
		ref(where, e.From)
		ref(where, e.To)
		if e.From == e.To {
			errs = append(errs, fmt.Errorf("%s: %w", where, models.ErrSelfFollow))
		}
	}
	pairs := make(map[[2]string]bool)
	for i, r := range sc.Requests {
		where := fmt.Sprintf("requests[%d]", i)
		ref(where, r.From)
		ref(where, r.To)
		if r.From == r.To {
			errs = append(errs, fmt.Errorf("%s: request to self", where))
		}
		if _, err := models.ParseRequestStatus(r.Status); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if pairs[[2]string{r.From, r.To}] {
			errs = append(errs, fmt.Errorf("%s: duplicate request %s -> %s", where, r.From, r.To))
		}
		pairs[[2]string{r.From, r.To}] = true
	}
	for i, p := range sc.Posts {
		where := fmt.Sprintf("posts[%d]", i)
		ref(where, p.Author)
		if _, err := models.ParseVisibility(p.Visibility); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if err := validation.ValidatePostContent(p.Content, p.ImageURL != ""); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		for _, name := range p.LikedBy {
			ref(where+".liked_by", name)
		}
		for j, c := range p.Comments {
			cwhere := fmt.Sprintf("%s.comments[%d]", where, j)
			ref(cwhere, c.Author)
			if err := validation.ValidateCommentText(c.Text); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", cwhere, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ApplyScenario inserts the scenario in one transaction.
func (s *Seeder) ApplyScenario(ctx context.Context, sc *Scenario) (*Summary, error) {
	summary := newSummary()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f := *s.factory
		f.db = tx

		users := make(map[string]*models.User, len(sc.Users))
		for _, su := range sc.Users {
			user, err := f.createScenarioUser(ctx, su)
			if err != nil {
				return fmt.Errorf("user %s: %w", su.Username, err)
			}
			users[su.Username] = user
			summary.Users++
		}

		for _, e := range sc.Follows {
			if err := f.Follow(ctx, users[e.From], users[e.To]); err != nil {
				return fmt.Errorf("follow %s -> %s: %w", e.From, e.To, err)
			}
			summary.Follows++
		}

		for _, r := range sc.Requests {
			status, _ := models.ParseRequestStatus(r.Status)
			if _, err := f.CreateRequest(ctx, users[r.From], users[r.To], status); err != nil {
				return fmt.Errorf("request %s -> %s: %w", r.From, r.To, err)
			}
			summary.Requests[status]++
		}

		for i, sp := range sc.Posts {
			visibility, _ := models.ParseVisibility(sp.Visibility)
			post := f.BuildPost(users[sp.Author], func(p *models.Post) {
				p.Content = strings.TrimSpace(sp.Content)
				p.Visibility = visibility
				p.ImageURL = nil
				if sp.ImageURL != "" {
					url := sp.ImageURL
					p.ImageURL = &url
				}
			})
			if err := f.CreatePostsBatch(ctx, []*models.Post{post}); err != nil {
				return fmt.Errorf("posts[%d]: %w", i, err)
			}
			summary.Posts++

			for _, name := range sp.LikedBy {
				if err := f.CreateLike(ctx, users[name], post); err != nil {
					return fmt.Errorf("posts[%d] like by %s: %w", i, name, err)
				}
				summary.Likes++
			}
			for _, comment := range sp.Comments {
				text := strings.TrimSpace(comment.Text)
				author := comment.Author
				if _, err := f.CreateComment(ctx, users[author], post, func(c *models.Comment) { c.Text = text }); err != nil {
					return fmt.Errorf("posts[%d] comment by %s: %w", i, author, err)
				}
				summary.Comments++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (f *Factory) createScenarioUser(ctx context.Context, su ScenarioUser) (*models.User, error) {
	apply := func(u *models.User) {
		u.Username = su.Username
		if su.FirstName != "" {
			u.FirstName = su.FirstName
		}
		if su.LastName != "" {
			u.LastName = su.LastName
		}
		u.Profile = &models.Profile{Bio: su.Bio}
		if su.Avatar != "" {
			avatar := su.Avatar
			u.Profile.AvatarURL = &avatar
		}
	}
	if su.GoogleID != "" {
		return f.CreateFederatedUser(ctx, su.GoogleID, apply)
	}
	return f.CreateUser(ctx, apply)
}
