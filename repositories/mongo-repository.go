package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collabspace/logging"
	"collabspace/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository keeps one document per user, team and project. Tasks are
// embedded in their project document.
type MongoRepository struct {
	client             *mongo.Client
	usersCollection    *mongo.Collection
	teamsCollection    *mongo.Collection
	projectsCollection *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("database connection for MongoDB failed: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDB connection ping error: %w", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB database %s.", database)

	repo := NewMongoRepository(client, database)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return &Store{
		Users:    repo,
		Teams:    repo,
		Projects: repo,
		closer:   client.Disconnect,
	}, nil
}

func NewMongoRepository(client *mongo.Client, database string) *MongoRepository {
	db := client.Database(database)
	return &MongoRepository{
		client:             client,
		usersCollection:    db.Collection("users"),
		teamsCollection:    db.Collection("teams"),
		projectsCollection: db.Collection("projects"),
	}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.usersCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create unique email index: %w", err)
	}
	_, err = r.projectsCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "assignedTeam", Value: 1}}},
		{Keys: bson.D{{Key: "tasks._id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create project indexes: %w", err)
	}
	return nil
}

func translateMongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

var creationOrder = options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

func (r *MongoRepository) InsertUser(ctx context.Context, user *models.User) error {
	_, err := r.usersCollection.InsertOne(ctx, user)
	return translateMongoErr(err)
}

func (r *MongoRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.usersCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translateMongoErr(err)
	}
	return &user, nil
}

func (r *MongoRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.usersCollection.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, translateMongoErr(err)
	}
	return &user, nil
}

func (r *MongoRepository) UpdateUser(ctx context.Context, user *models.User) error {
	result, err := r.usersCollection.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return translateMongoErr(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) DeleteUser(ctx context.Context, id string) (bool, error) {
	result, err := r.usersCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

func (r *MongoRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := r.usersCollection.Find(ctx, bson.M{}, creationOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve users: %w", err)
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (r *MongoRepository) CountUsers(ctx context.Context) (int, error) {
	n, err := r.usersCollection.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (r *MongoRepository) InsertTeam(ctx context.Context, team *models.Team) error {
	_, err := r.teamsCollection.InsertOne(ctx, team)
	return translateMongoErr(err)
}

func (r *MongoRepository) FindTeamByID(ctx context.Context, id string) (*models.Team, error) {
	var team models.Team
	if err := r.teamsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&team); err != nil {
		return nil, translateMongoErr(err)
	}
	return &team, nil
}

// UpdateTeam replaces the document only if nobody bumped its version since it was read.
func (r *MongoRepository) UpdateTeam(ctx context.Context, team *models.Team) error {
	next := team.Clone()
	next.Version = team.Version + 1
	result, err := r.teamsCollection.ReplaceOne(ctx, bson.M{"_id": team.ID, "version": team.Version}, next)
	if err != nil {
		return translateMongoErr(err)
	}
	if result.MatchedCount == 0 {
		return r.missingOrConflict(ctx, r.teamsCollection, team.ID)
	}
	team.Version = next.Version
	return nil
}

func (r *MongoRepository) missingOrConflict(ctx context.Context, coll *mongo.Collection, id string) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *MongoRepository) DeleteTeam(ctx context.Context, id string) error {
	result, err := r.teamsCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListTeams(ctx context.Context) ([]models.Team, error) {
	cursor, err := r.teamsCollection.Find(ctx, bson.M{}, creationOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve teams: %w", err)
	}
	var teams []models.Team
	if err := cursor.All(ctx, &teams); err != nil {
		return nil, fmt.Errorf("failed to decode teams: %w", err)
	}
	return teams, nil
}

func (r *MongoRepository) InsertProject(ctx context.Context, project *models.Project) error {
	_, err := r.projectsCollection.InsertOne(ctx, project)
	return translateMongoErr(err)
}

func (r *MongoRepository) FindProjectByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := r.projectsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&project); err != nil {
		return nil, translateMongoErr(err)
	}
	return &project, nil
}

func (r *MongoRepository) FindProjectByTaskID(ctx context.Context, taskID string) (*models.Project, error) {
	var project models.Project
	if err := r.projectsCollection.FindOne(ctx, bson.M{"tasks._id": taskID}).Decode(&project); err != nil {
		return nil, translateMongoErr(err)
	}
	return &project, nil
}

func (r *MongoRepository) UpdateProject(ctx context.Context, project *models.Project) error {
	next := project.Clone()
	next.Version = project.Version + 1
	result, err := r.projectsCollection.ReplaceOne(ctx, bson.M{"_id": project.ID, "version": project.Version}, next)
	if err != nil {
		return translateMongoErr(err)
	}
	if result.MatchedCount == 0 {
		return r.missingOrConflict(ctx, r.projectsCollection, project.ID)
	}
	project.Version = next.Version
	return nil
}

func (r *MongoRepository) DeleteProject(ctx context.Context, id string) error {
	result, err := r.projectsCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) DeleteProjectsByTeam(ctx context.Context, teamID string) (int, error) {
	result, err := r.projectsCollection.DeleteMany(ctx, bson.M{"assignedTeam": teamID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete projects of team %s: %w", teamID, err)
	}
	return int(result.DeletedCount), nil
}

func (r *MongoRepository) CountProjectsByTeam(ctx context.Context, teamID string) (int, error) {
	n, err := r.projectsCollection.CountDocuments(ctx, bson.M{"assignedTeam": teamID})
	return int(n), err
}

func (r *MongoRepository) ListProjects(ctx context.Context) ([]models.Project, error) {
	cursor, err := r.projectsCollection.Find(ctx, bson.M{}, creationOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve projects: %w", err)
	}
	var projects []models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return projects, nil
}
