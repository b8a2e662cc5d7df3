package storage

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"github.com/pkg/errors"

	"github.com/storyloom/storyloom/pkg/story"
)

// Neo4jStoryStore persists story trees in Neo4j. Each story beat
// becomes a Scene node keyed by its tree path; choices become ordered
// CHOICE relationships and merge pointers become MERGES_TO
// relationships back into the main storyline.
type Neo4jStoryStore struct {
	driver  neo4j.Driver
	uri     string
	auth    neo4j.AuthToken
	session neo4j.Session
}

// NewNeo4jStoryStore creates a new Neo4j story store
func NewNeo4jStoryStore(uri, username, password string) (*Neo4jStoryStore, error) {
	auth := neo4j.BasicAuth(username, password, "")
	driver, err := neo4j.NewDriver(uri, auth)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Neo4j driver")
	}

	return &Neo4jStoryStore{
		driver: driver,
		uri:    uri,
		auth:   auth,
	}, nil
}

// Connect opens the session used by StoreStory and LoadStory.
func (s *Neo4jStoryStore) Connect(ctx context.Context) error {
	s.session = s.driver.NewSession(neo4j.SessionConfig{})
	return nil
}

// Close releases the session and driver.
func (s *Neo4jStoryStore) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	if s.driver != nil {
		return s.driver.Close()
	}
	return nil
}

// StoreStory replaces the persisted story with the given tree.
func (s *Neo4jStoryStore) StoreStory(ctx context.Context, root *story.Node) error {
	if root == nil {
		return errors.New("cannot store an empty story")
	}

	session := s.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	_, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		if _, err := tx.Run(`MATCH (s:Scene) DETACH DELETE s`, nil); err != nil {
			return nil, err
		}

		var txErr error
		story.Walk(root, func(n *story.Node, path story.TreePath) bool {
			params := map[string]interface{}{
				"id":          uuid.New().String(),
				"path":        path.String(),
				"name":        n.Name,
				"description": n.Description,
			}

			query := `
				CREATE (s:Scene {
					id: $id,
					path: $path,
					name: $name,
					description: $description
				})
			`
			if n.Achievement != nil {
				query = `
					CREATE (s:Scene {
						id: $id,
						path: $path,
						name: $name,
						description: $description,
						achievement_type: $achievement_type,
						achievement_title: $achievement_title,
						achievement_description: $achievement_description
					})
				`
				params["achievement_type"] = n.Achievement.Type
				params["achievement_title"] = n.Achievement.Title
				params["achievement_description"] = n.Achievement.Description
			}

			if _, err := tx.Run(query, params); err != nil {
				txErr = err
				return false
			}
			return true
		})
		if txErr != nil {
			return nil, txErr
		}

		// Second pass for relationships, once every Scene exists.
		story.Walk(root, func(n *story.Node, path story.TreePath) bool {
			for i := range n.Children {
				childPath := append(append(story.TreePath{}, path...), i)
				_, err := tx.Run(`
					MATCH (parent:Scene {path: $parent})
					MATCH (child:Scene {path: $child})
					CREATE (parent)-[:CHOICE {ord: $ord}]->(child)
				`, map[string]interface{}{
					"parent": path.String(),
					"child":  childPath.String(),
					"ord":    i,
				})
				if err != nil {
					txErr = err
					return false
				}
			}

			if n.IsMerge() {
				_, err := tx.Run(`
					MATCH (from:Scene {path: $from})
					MATCH (to:Scene {path: $to})
					CREATE (from)-[:MERGES_TO]->(to)
				`, map[string]interface{}{
					"from": path.String(),
					"to":   n.MergeTarget.String(),
				})
				if err != nil {
					txErr = err
					return false
				}
			}
			return true
		})
		return nil, txErr
	})

	return err
}

// LoadStory reassembles the stored tree from Scene paths.
func (s *Neo4jStoryStore) LoadStory(ctx context.Context) (*story.Node, error) {
	if s.session == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}

	result, err := s.session.Run(`
		MATCH (s:Scene)
		OPTIONAL MATCH (s)-[:MERGES_TO]->(target:Scene)
		RETURN s, target.path
	`, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load scenes")
	}

	nodes := make(map[string]*story.Node)
	paths := make([]story.TreePath, 0)

	for result.Next() {
		record := result.Record()
		sceneData, ok := record.Values[0].(neo4j.Node)
		if !ok {
			return nil, errors.New("unexpected record shape loading scenes")
		}

		node := &story.Node{
			Name:        stringProp(sceneData, "name"),
			Description: stringProp(sceneData, "description"),
			Children:    []*story.Node{},
		}
		if title := stringProp(sceneData, "achievement_title"); title != "" {
			node.Achievement = &story.Achievement{
				Type:        stringProp(sceneData, "achievement_type"),
				Title:       title,
				Description: stringProp(sceneData, "achievement_description"),
			}
		}
		if targetPath, ok := record.Values[1].(string); ok && targetPath != "" {
			target, err := story.ParseTreePath(targetPath)
			if err != nil {
				return nil, errors.Wrap(err, "stored merge target is corrupt")
			}
			node.MergeTarget = target
		}

		pathStr := stringProp(sceneData, "path")
		path, err := story.ParseTreePath(pathStr)
		if err != nil {
			return nil, errors.Wrap(err, "stored scene path is corrupt")
		}

		nodes[path.String()] = node
		paths = append(paths, path)
	}

	if len(nodes) == 0 {
		return nil, errors.New("no story stored")
	}

	// Shorter paths first so parents exist before their children.
	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return less(paths[i], paths[j])
	})

	var root *story.Node
	for _, path := range paths {
		node := nodes[path.String()]
		if len(path) == 0 {
			root = node
			continue
		}
		parent, ok := nodes[path[:len(path)-1].String()]
		if !ok {
			return nil, errors.Errorf("scene %s has no stored parent", path)
		}
		parent.Children = append(parent.Children, node)
	}

	if root == nil {
		return nil, errors.New("stored story has no root scene")
	}
	return root, nil
}

func stringProp(node neo4j.Node, key string) string {
	if value, ok := node.Props[key].(string); ok {
		return value
	}
	return ""
}

func less(a, b story.TreePath) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
