package repository

// Cypher statements used by the store adapters. Node and edge rows carry
// exactly the fields routing and caching need; everything else about an
// issue lives with the issue-management subsystem.

const listNodesCypher = `
MATCH (n:RoadNode)
RETURN n.id AS id, n.latitude AS latitude, n.longitude AS longitude, n.osmId AS osmId
`

const listEdgesCypher = `
MATCH (a:RoadNode)-[r:ROAD_SEGMENT]->(b:RoadNode)
RETURN r.id AS id, a.id AS startNodeId, b.id AS endNodeId,
       r.distance AS distance, r.baseCost AS baseCost, r.penalty AS penalty
`

const findNodesNearCypher = `
MATCH (n:RoadNode)
WHERE n.latitude >= $minLat AND n.latitude <= $maxLat
  AND n.longitude >= $minLng AND n.longitude <= $maxLng
RETURN n.id AS id, n.latitude AS latitude, n.longitude AS longitude, n.osmId AS osmId
`

const resetAllPenaltiesCypher = `
MATCH ()-[r:ROAD_SEGMENT]->()
SET r.penalty = 1.0
`

const bulkUpdateEdgePenaltyCypher = `
MATCH ()-[r:ROAD_SEGMENT]->()
WHERE r.id IN $edgeIds AND r.penalty < $penalty
SET r.penalty = $penalty
`

const upsertNodeCypher = `
MERGE (n:RoadNode {osmId: $osmId})
ON CREATE SET n.id = $id, n.latitude = $latitude, n.longitude = $longitude
RETURN n.id AS id
`

const createEdgeCypher = `
MATCH (a:RoadNode {id: $startNodeId}), (b:RoadNode {id: $endNodeId})
CREATE (a)-[r:ROAD_SEGMENT {
	id: $id,
	distance: $distance,
	baseCost: $baseCost,
	penalty: $penalty
}]->(b)
`

const listActiveIssuesCypher = `
MATCH (i:Issue)
WHERE i.status <> 'RESOLVED'
  AND i.latitude IS NOT NULL AND i.longitude IS NOT NULL
RETURN i.id AS id, i.latitude AS latitude, i.longitude AS longitude,
       i.issueType AS issueType, i.severity AS severity
`

const queryIssuesInBoxCypher = `
MATCH (i:Issue)
WHERE i.latitude >= $minLat AND i.latitude <= $maxLat
  AND i.longitude >= $minLng AND i.longitude <= $maxLng
  AND ($includeResolved OR i.status <> 'RESOLVED')
RETURN i.id AS id, i.title AS title, i.status AS status, i.issueType AS issueType,
       i.latitude AS latitude, i.longitude AS longitude,
       i.voteCount AS voteCount, i.commentCount AS commentCount, i.createdAt AS createdAt
ORDER BY i.createdAt DESC
LIMIT $limit
`

const getIssueSummaryCypher = `
MATCH (i:Issue {id: $id})
RETURN i.id AS id, i.title AS title, i.status AS status, i.issueType AS issueType,
       i.latitude AS latitude, i.longitude AS longitude,
       i.voteCount AS voteCount, i.commentCount AS commentCount, i.createdAt AS createdAt
`

const createIssueCypher = `
MERGE (i:Issue {id: $id})
SET i.title = $title,
    i.status = $status,
    i.issueType = $issueType,
    i.latitude = $latitude,
    i.longitude = $longitude,
    i.severity = $severity,
    i.voteCount = $voteCount,
    i.commentCount = $commentCount,
    i.createdAt = $createdAt
`
