// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/blinklabs-io/toponym/database/models"
)

// ClusterPositions returns the positions placed through a toponym of any of
// the sources, skipping toponyms declared irrelevant and the sentinel
// position. Each position appears once, ordered by id.
func (d *Database) ClusterPositions(sources []string, txn *Txn) ([]models.Position, error) {
	var ret []models.Position
	err := d.handle(txn).
		Where(
			`position_id IN (SELECT position_fk FROM toponym
			WHERE source_fk IN ? AND COALESCE(comment, '') NOT LIKE '%Declared%')`,
			sources,
		).
		Where("position_id <> ?", models.ForeignPositionID).
		Order("position_id").
		Find(&ret).Error
	if err != nil {
		return nil, d.storeError("load cluster positions", err, "sources", sources)
	}
	return ret, nil
}

// ResetClusters drops and recreates the cluster table
func (d *Database) ResetClusters(txn *Txn) error {
	migrator := d.handle(txn).Migrator()
	if err := migrator.DropTable(&models.ClusterMember{}); err != nil {
		return d.storeError("drop cluster table", err)
	}
	if err := migrator.CreateTable(&models.ClusterMember{}); err != nil {
		return d.storeError("create cluster table", err)
	}
	return nil
}

// ClusterMembersInBox returns cluster members inside the bounding box ordered
// by cluster number
func (d *Database) ClusterMembersInBox(
	latLo, latHi, lngLo, lngHi float64,
	txn *Txn,
) ([]models.ClusterMember, error) {
	var ret []models.ClusterMember
	err := d.handle(txn).
		Where("lat BETWEEN ? AND ?", latLo, latHi).
		Where("lng BETWEEN ? AND ?", lngLo, lngHi).
		Order("cluster_nr, id").
		Find(&ret).Error
	if err != nil {
		return nil, d.storeError("load cluster candidates", err)
	}
	return ret, nil
}

// NextClusterNr returns one more than the highest cluster number, or 0 when
// the table is empty
func (d *Database) NextClusterNr(txn *Txn) (int, error) {
	var highest sql.NullInt64
	err := d.handle(txn).
		Model(&models.ClusterMember{}).
		Select("max(cluster_nr)").
		Row().
		Scan(&highest)
	if err != nil {
		return 0, d.storeError("load cluster number", err)
	}
	if !highest.Valid {
		return 0, nil
	}
	return int(highest.Int64) + 1, nil
}

// RelabelCluster moves every member of cluster from into cluster to
func (d *Database) RelabelCluster(from int, to int, txn *Txn) error {
	err := d.handle(txn).
		Model(&models.ClusterMember{}).
		Where("cluster_nr = ?", from).
		Update("cluster_nr", to).Error
	if err != nil {
		return d.storeError("relabel cluster", err, "from", from, "to", to)
	}
	return nil
}

// AddClusterMember inserts a position into the cluster table
func (d *Database) AddClusterMember(member *models.ClusterMember, txn *Txn) error {
	if err := d.handle(txn).Create(member).Error; err != nil {
		return d.storeError("add cluster member", err, "position_id", member.PositionID)
	}
	return nil
}

// ClusterMembers returns the whole cluster table in insertion order
func (d *Database) ClusterMembers(txn *Txn) ([]models.ClusterMember, error) {
	var ret []models.ClusterMember
	if err := d.handle(txn).Order("id").Find(&ret).Error; err != nil {
		return nil, d.storeError("load cluster members", err)
	}
	return ret, nil
}

// ClusterSummaryRow aggregates one cluster
type ClusterSummaryRow struct {
	Years     string
	PerSource []int64
	Latitude  float64
	Longitude float64
	Points    int64
	Toponyms  int64
}

// ClusterSummary aggregates the cluster table per cluster number: the
// distinct source years, mean coordinates, distinct positions, toponyms and
// toponyms per source. Rows are ordered by the year list.
func (d *Database) ClusterSummary(sources []string, txn *Txn) ([]ClusterSummaryRow, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	args := map[string]any{"sources": sources}
	counts := make([]string, 0, len(sources))
	for i, source := range sources {
		key := fmt.Sprintf("source%d", i)
		args[key] = source
		counts = append(counts, fmt.Sprintf("sum(t.source_fk = @%s)", key))
	}
	query := `SELECT group_concat(DISTINCT s.year) AS years,
			avg(c.lat), avg(c.lng), count(DISTINCT c.p_fk), count(t.source_fk), ` +
		strings.Join(counts, ", ") + `
		FROM toponym AS t
		JOIN cluster AS c ON t.position_fk = c.p_fk
		JOIN source AS s ON t.source_fk = s.name
		WHERE t.source_fk IN @sources
		GROUP BY c.cluster_nr
		ORDER BY years, c.cluster_nr`
	rows, err := d.handle(txn).Raw(query, args).Rows()
	if err != nil {
		return nil, d.storeError("summarize clusters", err)
	}
	defer rows.Close()
	var ret []ClusterSummaryRow
	for rows.Next() {
		row := ClusterSummaryRow{PerSource: make([]int64, len(sources))}
		dest := []any{&row.Years, &row.Latitude, &row.Longitude, &row.Points, &row.Toponyms}
		for i := range row.PerSource {
			dest = append(dest, &row.PerSource[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, d.storeError("scan cluster summary", err)
		}
		ret = append(ret, row)
	}
	if err := rows.Err(); err != nil {
		return nil, d.storeError("summarize clusters", err)
	}
	return ret, nil
}
