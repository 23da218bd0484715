package memory

const (
	saveUtteranceQuery = `
		MERGE (u:Utterance {uuid: $uuid})
		SET u.group_id = $group_id,
			u.role = $role,
			u.persona_id = $persona_id,
			u.content = $content,
			u.created_at = $created_at
		RETURN u.uuid AS uuid
	`

	recallQuery = `
		MATCH (u:Utterance {group_id: $group_id})
		WHERE toLower(u.content) CONTAINS toLower($query)
			AND u.created_at <> $exclude_created_at
		RETURN u.role AS role, u.persona_id AS persona_id,
			u.content AS content, u.created_at AS created_at
		ORDER BY u.created_at DESC
		LIMIT $limit
	`

	threadSummariesQuery = `
		MATCH (u:Utterance)
		WITH u.group_id AS group_id, max(u.created_at) AS last_at
		MATCH (latest:Utterance {group_id: group_id, created_at: last_at})
		RETURN group_id, latest.content AS preview, last_at
		ORDER BY last_at DESC
	`
)
